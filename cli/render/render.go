// Package render writes command results for the desklink CLI.
//
// Without --format, output to a terminal is a table and anything else is
// JSON. --no-color only affects tables; the TUI keeps its own styling.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/desklink/cli/tui"
)

// Format is an output format.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a --format value. The empty string is valid and means
// "pick by terminal".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatTable, FormatYAML, "":
		return f, nil
	default:
		return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
	}
}

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))

// Renderer writes results in one format.
type Renderer struct {
	format  Format
	noColor bool
	out     io.Writer
}

// NewRenderer creates a renderer from the --format and --no-color flags.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	format, err := ParseFormat(c.String("format"))
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = FormatJSON
		if isTTY(os.Stdout) {
			format = FormatTable
		}
	}
	return &Renderer{format: format, noColor: c.Bool("no-color"), out: os.Stdout}, nil
}

// NewRendererWithWriter creates a renderer writing to out.
func NewRendererWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	return &Renderer{format: format, noColor: noColor, out: out}
}

// Format returns the selected format.
func (r *Renderer) Format() Format { return r.format }

// Render writes data in the selected format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(r.out)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	case FormatTable:
		return r.renderTable(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

// RenderTUI opens the interactive view for viewType. Only read-only views
// support it.
func (r *Renderer) RenderTUI(viewType string, data any) error {
	if !tui.IsTUISupported(viewType) {
		return fmt.Errorf("--tui is not supported for %s", viewType)
	}
	return tui.Run(viewType, data)
}

func (r *Renderer) header(s string) string {
	if r.noColor {
		return s
	}
	return headerStyle.Render(s)
}

func (r *Renderer) renderTable(data any) error {
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	v := reflect.Indirect(reflect.ValueOf(data))

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			fmt.Fprintln(r.out, "(no results)")
			return nil
		}
		cols := columns(v.Index(0))
		fmt.Fprintln(w, r.header(strings.Join(cols, "\t")))
		for i := 0; i < v.Len(); i++ {
			fmt.Fprintln(w, strings.Join(row(v.Index(i), cols), "\t"))
		}
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			fmt.Fprintf(w, "%s:\t%s\n", r.header(fieldName(t.Field(i))), formatValue(v.Field(i)))
		}
	case reflect.Map:
		for _, k := range sortedKeys(v) {
			fmt.Fprintf(w, "%s:\t%s\n", r.header(k), formatValue(v.MapIndex(reflect.ValueOf(k))))
		}
	default:
		fmt.Fprintf(w, "%v\n", data)
	}
	return w.Flush()
}

// columns are the json field names of a struct row or the sorted keys of
// a map row.
func columns(v reflect.Value) []string {
	v = reflect.Indirect(v)
	switch v.Kind() {
	case reflect.Struct:
		var cols []string
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			if t.Field(i).IsExported() {
				cols = append(cols, fieldName(t.Field(i)))
			}
		}
		return cols
	case reflect.Map:
		return sortedKeys(v)
	}
	return []string{"value"}
}

func row(v reflect.Value, cols []string) []string {
	v = reflect.Indirect(v)
	var out []string
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			if t.Field(i).IsExported() {
				out = append(out, formatValue(v.Field(i)))
			}
		}
	case reflect.Map:
		for _, c := range cols {
			out = append(out, formatValue(v.MapIndex(reflect.ValueOf(c))))
		}
	default:
		out = append(out, formatValue(v))
	}
	return out
}

// sortedKeys only supports string-keyed maps.
func sortedKeys(v reflect.Value) []string {
	keys := make([]string, 0, v.Len())
	for _, k := range v.MapKeys() {
		keys = append(keys, fmt.Sprint(k.Interface()))
	}
	sort.Strings(keys)
	return keys
}

func fieldName(f reflect.StructField) string {
	if tag := f.Tag.Get("json"); tag != "" {
		if name, _, _ := strings.Cut(tag, ","); name != "" && name != "-" {
			return name
		}
	}
	return strings.ToLower(f.Name)
}

func formatValue(v reflect.Value) string {
	if !v.IsValid() {
		return ""
	}
	if v.Kind() == reflect.Interface || v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return ""
		}
		return formatValue(v.Elem())
	}
	if v.CanInterface() {
		switch x := v.Interface().(type) {
		case time.Time:
			return x.Format(time.RFC3339)
		case time.Duration:
			return x.String()
		case fmt.Stringer:
			return x.String()
		}
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return "[]"
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		if v.Len() == 0 {
			return "{}"
		}
		return fmt.Sprintf("{%d keys}", v.Len())
	case reflect.Struct:
		return "{...}"
	default:
		return fmt.Sprint(v.Interface())
	}
}

func isTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
