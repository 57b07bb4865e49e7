package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/desklink/cli/config"
	"github.com/pithecene-io/desklink/cli/render"
	"github.com/pithecene-io/desklink/endpoint"
	"github.com/pithecene-io/desklink/ipc"
	"github.com/pithecene-io/desklink/transport"
	"github.com/pithecene-io/desklink/transport/serial"
	"github.com/pithecene-io/desklink/types"
)

// PortItem is one serial port on the host.
type PortItem struct {
	Port string `json:"port"`
}

// PortsCommand returns the ports command.
func PortsCommand() *cli.Command {
	return &cli.Command{
		Name:   "ports",
		Usage:  "List serial ports on this host",
		Flags:  ReadOnlyFlags(),
		Action: portsAction,
	}
}

func portsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for ports", 1)
	}
	names, err := serial.Ports()
	if err != nil {
		return fmt.Errorf("list serial ports: %w", err)
	}
	items := make([]PortItem, 0, len(names))
	for _, n := range names {
		items = append(items, PortItem{Port: n})
	}
	return r.Render(items)
}

// SendResponse is one response envelope read back from the device.
type SendResponse struct {
	Endpoint types.Endpoint `json:"endpoint"`
	Status   types.Status   `json:"status"`
	UUID     string         `json:"uuid"`
	Body     any            `json:"body"`
	NextPage *endpoint.Page `json:"nextPage,omitempty"`
}

// SendCommand returns the send command: the host side of the protocol,
// for poking a device from a terminal.
func SendCommand() *cli.Command {
	return &cli.Command{
		Name:  "send",
		Usage: "Send one request to a device and print its responses",
		Flags: withFlags(ReadOnlyFlags(), []cli.Flag{
			&cli.StringFlag{
				Name:     "port",
				Aliases:  []string{"p"},
				Usage:    "Serial device path, or - for stdin/stdout",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "endpoint",
				Aliases:  []string{"e"},
				Usage:    "Endpoint name or id (e.g. deviceInfo, 1)",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "method",
				Aliases: []string{"m"},
				Usage:   "get, post, put or del",
				Value:   "get",
			},
			&cli.Int64Flag{
				Name:  "uuid",
				Usage: "Request correlation id",
				Value: 1,
			},
			&cli.StringFlag{
				Name:  "body",
				Usage: "Request body as JSON",
			},
			&cli.IntFlag{
				Name:  "responses",
				Usage: "Number of responses to wait for",
				Value: 1,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Give up after this long",
				Value: 5 * time.Second,
			},
		}),
		Action: sendAction,
	}
}

// buildRequest encodes a request envelope.
func buildRequest(ep, method string, uuid int64, body string) ([]byte, error) {
	e, err := types.ParseEndpoint(ep)
	if err != nil {
		return nil, err
	}
	m, err := types.ParseMethod(method)
	if err != nil {
		return nil, err
	}
	req := endpoint.Request{Endpoint: e, Method: m, UUID: uuid}
	if body != "" {
		if !json.Valid([]byte(body)) {
			return nil, errors.New("--body is not valid JSON")
		}
		req.Body = json.RawMessage(body)
	}
	return json.Marshal(req)
}

func sendAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for send", 1)
	}
	payload, err := buildRequest(c.String("endpoint"), c.String("method"), c.Int64("uuid"), c.String("body"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	link, err := openTransport(config.TransportConfig{Port: c.String("port")}, nil, nil)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	responses, err := exchange(ctx, link, payload, c.Int("responses"))
	if len(responses) > 0 {
		if rerr := r.Render(responses); rerr != nil {
			return rerr
		}
	}
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	return nil
}

// exchange sends one message frame over t and collects n response
// message frames. Raw frames are skipped. It closes t.
func exchange(ctx context.Context, t transport.Transport, payload []byte, n int) ([]SendResponse, error) {
	pr, pw := io.Pipe()
	t.SetReceiveHandler(func(data []byte) {
		_, _ = pw.Write(data)
	})
	stop := make(chan struct{})
	defer func() {
		close(stop)
		_ = pr.Close()
		_ = t.Close()
	}()
	if err := t.Start(ctx); err != nil {
		return nil, fmt.Errorf("start link: %w", err)
	}
	if !t.Send(ipc.EncodeMessage(payload)) {
		return nil, errors.New("link closed before the request was sent")
	}

	type frame struct {
		resp SendResponse
		err  error
	}
	frames := make(chan frame)
	go func() {
		dec := ipc.NewFrameDecoder(pr)
		for {
			ft, data, err := dec.ReadFrame()
			var f frame
			switch {
			case err != nil:
				f.err = err
			case ft != ipc.FrameMessage:
				continue
			default:
				f.err = json.Unmarshal(data, &f.resp)
			}
			select {
			case frames <- f:
			case <-stop:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	var out []SendResponse
	for len(out) < n {
		select {
		case f := <-frames:
			if f.err != nil {
				return out, fmt.Errorf("read response: %w", f.err)
			}
			out = append(out, f.resp)
		case <-t.Done():
			return out, errors.New("link closed")
		case <-ctx.Done():
			return out, fmt.Errorf("waiting for response %d of %d: %w", len(out)+1, n, ctx.Err())
		}
	}
	return out, nil
}
