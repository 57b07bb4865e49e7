package calllog

import (
	"testing"

	"github.com/pithecene-io/desklink/db"
	"github.com/pithecene-io/desklink/db/memdb"
	"github.com/pithecene-io/desklink/endpoint"
	"github.com/pithecene-io/desklink/endpoint/endpointtest"
	"github.com/pithecene-io/desklink/types"
)

func setup(t *testing.T) (*Handler, *endpointtest.Recorder) {
	t.Helper()
	store := memdb.New()
	store.InsertCalllog(db.Calllog{PhoneNumber: "+48111", Date: 10, Duration: 30, Type: db.CallTypeIncoming, ContactID: 1})
	store.InsertCalllog(db.Calllog{PhoneNumber: "+48111", Date: 20, Type: db.CallTypeMissed, ContactID: 1})
	store.InsertCalllog(db.Calllog{PhoneNumber: "+48999", Date: 30, Duration: 5, Type: db.CallTypeOutgoing})
	deps, rec := endpointtest.Deps(t, store)
	return New(deps), rec
}

func TestCount(t *testing.T) {
	h, rec := setup(t)
	h.Handle(endpointtest.Request(t, types.EndpointCalllog, types.MethodGet, 1, map[string]any{"count": true}))
	var b endpoint.CountBody
	rec.Wait(t, 1)[0].DecodeBody(t, &b)
	if b.Count != 3 {
		t.Errorf("count = %d, want 3", b.Count)
	}
}

func TestByContact(t *testing.T) {
	h, rec := setup(t)
	h.Handle(endpointtest.Request(t, types.EndpointCalllog, types.MethodGet, 1, map[string]any{"contactID": 1}))
	var calls []Call
	rec.Wait(t, 1)[0].DecodeBody(t, &calls)
	if len(calls) != 2 {
		t.Fatalf("len = %d, want 2", len(calls))
	}
	for _, c := range calls {
		if c.ContactID != 1 {
			t.Errorf("ContactID = %d, want 1", c.ContactID)
		}
	}
}

func TestPaged(t *testing.T) {
	h, rec := setup(t)
	h.Handle(endpointtest.Request(t, types.EndpointCalllog, types.MethodGet, 5, map[string]any{"offset": 1, "limit": 1}))
	f := rec.Wait(t, 1)[0]
	var p callsPage
	f.DecodeBody(t, &p)
	if len(p.Calls) != 1 || p.TotalCount != 3 {
		t.Fatalf("page = %d of %d, want 1 of 3", len(p.Calls), p.TotalCount)
	}
	if p.Calls[0].Date != 20 {
		t.Errorf("Date = %d, want 20", p.Calls[0].Date)
	}
	if f.NextPage == nil || *f.NextPage != (endpoint.Page{Offset: 2, Limit: 1}) {
		t.Errorf("NextPage = %+v, want {2 1}", f.NextPage)
	}
}

func TestDelete(t *testing.T) {
	h, rec := setup(t)
	h.Handle(endpointtest.Request(t, types.EndpointCalllog, types.MethodDel, 1, map[string]any{"id": 2}))
	if f := rec.Wait(t, 1)[0]; f.Status != types.StatusOK {
		t.Errorf("Status = %d, want 200", f.Status)
	}
	h.Handle(endpointtest.Request(t, types.EndpointCalllog, types.MethodDel, 2, map[string]any{"id": 2}))
	if f := rec.Wait(t, 2)[1]; f.Status != types.StatusInternalServerError {
		t.Errorf("Status = %d, want 500", f.Status)
	}
}

func TestUnsupportedMethods(t *testing.T) {
	h, rec := setup(t)
	h.Handle(endpointtest.Request(t, types.EndpointCalllog, types.MethodPut, 1, map[string]any{"id": 1}))
	h.Handle(endpointtest.Request(t, types.EndpointCalllog, types.MethodPost, 2, map[string]any{"id": 1}))
	h.Handle(endpointtest.Request(t, types.EndpointCalllog, types.MethodDel, 3, map[string]any{}))
	for _, f := range rec.Wait(t, 3) {
		if f.Status != types.StatusBadRequest {
			t.Errorf("uuid %s Status = %d, want 400", f.UUID, f.Status)
		}
	}
}
