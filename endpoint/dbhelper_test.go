package endpoint_test

import (
	"testing"

	"github.com/pithecene-io/desklink/db"
	"github.com/pithecene-io/desklink/endpoint"
	"github.com/pithecene-io/desklink/endpoint/endpointtest"
	"github.com/pithecene-io/desklink/security"
	"github.com/pithecene-io/desklink/types"
)

// stubHelper records which operation ran and returns a fixed result.
type stubHelper struct {
	called string
	result endpoint.Result
}

func (s *stubHelper) RequestDataFromDB(*endpoint.Context) endpoint.Result {
	s.called = "get"
	return s.result
}

func (s *stubHelper) CreateDBEntry(*endpoint.Context) endpoint.Result {
	s.called = "put"
	return s.result
}

func (s *stubHelper) UpdateDBEntry(*endpoint.Context) endpoint.Result {
	s.called = "post"
	return s.result
}

func (s *stubHelper) DeleteDBEntry(ctx *endpoint.Context) endpoint.Result {
	s.called = "del"
	if s.result == endpoint.ResultFailure {
		ctx.SetResponseStatus(types.StatusNotFound)
	}
	return s.result
}

type nullQuerier struct{ accept bool }

func (q nullQuerier) Submit(db.Query) bool { return q.accept }

func TestHandleDB_MethodMapping(t *testing.T) {
	tests := []struct {
		method types.Method
		want   string
	}{
		{types.MethodGet, "get"},
		{types.MethodPost, "post"},
		{types.MethodPut, "put"},
		{types.MethodDel, "del"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			rec := endpointtest.NewRecorder()
			h := &stubHelper{result: endpoint.ResultSuccess}
			ctx := endpointtest.Request(t, types.EndpointContacts, tt.method, 1, nil)

			endpoint.HandleDB(ctx, h, endpoint.Deps{Sender: rec})

			if h.called != tt.want {
				t.Errorf("called %q, want %q", h.called, tt.want)
			}
			if rec.Count() != 0 {
				t.Errorf("sent %d frames on success, want 0 (listener responds)", rec.Count())
			}
		})
	}
}

func TestHandleDB_InvalidMethod(t *testing.T) {
	rec := endpointtest.NewRecorder()
	h := &stubHelper{}
	ctx := endpointtest.Request(t, types.EndpointContacts, types.Method(9), 77, nil)

	endpoint.HandleDB(ctx, h, endpoint.Deps{Sender: rec})

	if h.called != "" {
		t.Errorf("helper %q ran for an invalid method", h.called)
	}
	frames := rec.Wait(t, 1)
	if frames[0].Status != types.StatusBadRequest {
		t.Errorf("status = %d, want 400", frames[0].Status)
	}
	if frames[0].UUID != "77" {
		t.Errorf("uuid = %q, want \"77\"", frames[0].UUID)
	}
}

func TestHandleDB_FailureAndUnresolved(t *testing.T) {
	rec := endpointtest.NewRecorder()
	deps := endpoint.Deps{Sender: rec}

	endpoint.HandleDB(endpointtest.Request(t, types.EndpointContacts, types.MethodDel, 1, nil),
		&stubHelper{result: endpoint.ResultFailure}, deps)
	endpoint.HandleDB(endpointtest.Request(t, types.EndpointContacts, types.MethodGet, 2, nil),
		&stubHelper{result: endpoint.ResultUnresolved}, deps)
	endpoint.HandleDB(endpointtest.Request(t, types.EndpointContacts, types.MethodPut, 3, nil),
		&stubHelper{result: endpoint.ResultFailure}, deps)

	frames := rec.Wait(t, 3)
	if frames[0].Status != types.StatusNotFound {
		t.Errorf("failure status = %d, want helper-set 404", frames[0].Status)
	}
	if frames[1].Status != types.StatusBadRequest {
		t.Errorf("unresolved status = %d, want 400", frames[1].Status)
	}
	if frames[2].Status != types.StatusBadRequest {
		t.Errorf("failure without status = %d, want 400", frames[2].Status)
	}
}

func TestSubmit_Rejected(t *testing.T) {
	ctx := endpointtest.Request(t, types.EndpointCalllog, types.MethodGet, 1, nil)
	deps := endpoint.Deps{DB: nullQuerier{accept: false}}

	res := endpoint.Submit(deps, ctx, db.NewCalllogGetCount(), func(db.Result) bool { return true })
	if res != endpoint.ResultFailure {
		t.Errorf("Submit = %v, want failure", res)
	}
	if ctx.ResponseStatus() != types.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", ctx.ResponseStatus())
	}
}

func TestRegistry_BlockPolicy(t *testing.T) {
	rec := endpointtest.NewRecorder()
	reg := endpoint.NewRegistry(endpoint.Deps{Sender: rec})
	served := map[types.Endpoint]int{}
	for _, e := range []types.Endpoint{types.EndpointDeviceInfo, types.EndpointUSBSecurity, types.EndpointContacts} {
		reg.Register(e, endpoint.HandlerFunc(func(*endpoint.Context) { served[e]++ }))
	}

	tests := []struct {
		name       string
		endpoint   types.Endpoint
		decision   security.Decision
		wantServed bool
		wantStatus types.Status
	}{
		{"allowed", types.EndpointContacts, security.Allowed, true, 0},
		{"device info while locked", types.EndpointDeviceInfo, security.Decision{Access: security.Block, Reason: security.DeviceLocked}, true, 0},
		{"usb security while onboarding", types.EndpointUSBSecurity, security.Decision{Access: security.Block, Reason: security.OnboardingNotFinished}, true, 0},
		{"locked", types.EndpointContacts, security.Decision{Access: security.Block, Reason: security.DeviceLocked}, false, types.StatusLocked},
		{"battery", types.EndpointContacts, security.Decision{Access: security.Block, Reason: security.BatteryCriticalLevel}, false, types.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := served[tt.endpoint]
			sent := rec.Count()
			ctx := endpointtest.Request(t, tt.endpoint, types.MethodGet, 5, nil)

			h := reg.Create(ctx, tt.decision)
			if h == nil {
				t.Fatal("Create returned nil")
			}
			h.Handle(ctx)

			if tt.wantServed {
				if served[tt.endpoint] != before+1 {
					t.Error("registered handler did not run")
				}
				return
			}
			frames := rec.Wait(t, sent+1)
			f := frames[len(frames)-1]
			if f.Status != tt.wantStatus {
				t.Errorf("status = %d, want %d", f.Status, tt.wantStatus)
			}
			var body endpoint.ReasonBody
			f.DecodeBody(t, &body)
			if body.Reason != tt.decision.Reason {
				t.Errorf("reason = %v, want %v", body.Reason, tt.decision.Reason)
			}
		})
	}
}

func TestRegistry_Unregistered(t *testing.T) {
	reg := endpoint.NewRegistry(endpoint.Deps{})
	ctx := endpointtest.Request(t, types.EndpointBluetooth, types.MethodGet, 1, nil)
	if h := reg.Create(ctx, security.Allowed); h != nil {
		t.Errorf("Create = %T, want nil for an endpoint without handler", h)
	}
}
