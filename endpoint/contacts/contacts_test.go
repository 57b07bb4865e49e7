package contacts

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
	store.InsertContact(db.Contact{PrimaryName: "Ada", AlternativeName: "Lovelace", Numbers: []string{"+48 111 222 333"}})
	store.InsertContact(db.Contact{PrimaryName: "Grace", AlternativeName: "Hopper", Numbers: []string{"+48444555666"}, Favourite: true})
	deps, rec := endpointtest.Deps(t, store)
	return New(deps), rec
}

func TestAdd(t *testing.T) {
	tests := []struct {
		name       string
		numbers    []string
		wantStatus types.Status
		wantID     uint32
	}{
		{"new number", []string{"+48777888999"}, types.StatusOK, 3},
		{"duplicate number", []string{"+48-111-222-333"}, types.StatusConflict, 1},
		{"no numbers", nil, types.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, rec := setup(t)
			body := Contact{PrimaryName: "Alan", AlternativeName: "Turing", Numbers: tt.numbers}
			h.Handle(endpointtest.Request(t, types.EndpointContacts, types.MethodPut, 8, body))

			f := rec.Wait(t, 1)[0]
			if f.Status != tt.wantStatus {
				t.Fatalf("Status = %d, want %d", f.Status, tt.wantStatus)
			}
			if tt.wantID == 0 {
				return
			}
			var b idBody
			f.DecodeBody(t, &b)
			if b.ID != tt.wantID {
				t.Errorf("id = %d, want %d", b.ID, tt.wantID)
			}
		})
	}
}

func TestGet(t *testing.T) {
	h, rec := setup(t)

	h.Handle(endpointtest.Request(t, types.EndpointContacts, types.MethodGet, 1, map[string]any{"count": true}))
	var count endpoint.CountBody
	rec.Wait(t, 1)[0].DecodeBody(t, &count)
	if count.Count != 2 {
		t.Errorf("count = %d, want 2", count.Count)
	}

	h.Handle(endpointtest.Request(t, types.EndpointContacts, types.MethodGet, 2, map[string]any{"id": 2}))
	var c Contact
	rec.Wait(t, 2)[1].DecodeBody(t, &c)
	if c.PrimaryName != "Grace" || !c.IsFavourite {
		t.Errorf("contact = %+v, want favourite Grace", c)
	}

	h.Handle(endpointtest.Request(t, types.EndpointContacts, types.MethodGet, 3, map[string]any{"offset": 0, "limit": 1}))
	f := rec.Wait(t, 3)[2]
	var p contactsPage
	f.DecodeBody(t, &p)
	if len(p.Entries) != 1 || p.Entries[0].PrimaryName != "Ada" || p.TotalCount != 2 {
		t.Errorf("page = %+v", p)
	}
	if f.NextPage == nil || f.NextPage.Offset != 1 {
		t.Errorf("NextPage = %+v, want offset 1", f.NextPage)
	}

	h.Handle(endpointtest.Request(t, types.EndpointContacts, types.MethodGet, 4, map[string]any{"id": 40}))
	if f := rec.Wait(t, 4)[3]; f.Status != types.StatusNotFound {
		t.Errorf("missing contact Status = %d, want 404", f.Status)
	}
}

func TestUpdateAndRemove(t *testing.T) {
	h, rec := setup(t)

	upd := Contact{ID: 1, PrimaryName: "Ada", AlternativeName: "King", Numbers: []string{"+48111222333"}}
	h.Handle(endpointtest.Request(t, types.EndpointContacts, types.MethodPost, 1, upd))
	if f := rec.Wait(t, 1)[0]; f.Status != types.StatusOK {
		t.Fatalf("update Status = %d, want 200", f.Status)
	}

	h.Handle(endpointtest.Request(t, types.EndpointContacts, types.MethodDel, 2, map[string]any{"id": 1}))
	if f := rec.Wait(t, 2)[1]; f.Status != types.StatusOK {
		t.Fatalf("remove Status = %d, want 200", f.Status)
	}

	h.Handle(endpointtest.Request(t, types.EndpointContacts, types.MethodPost, 3, upd))
	if f := rec.Wait(t, 3)[2]; f.Status != types.StatusInternalServerError {
		t.Errorf("update of removed Status = %d, want 500", f.Status)
	}

	h.Handle(endpointtest.Request(t, types.EndpointContacts, types.MethodDel, 4, map[string]any{}))
	if f := rec.Wait(t, 4)[3]; f.Status != types.StatusBadRequest {
		t.Errorf("remove without id Status = %d, want 400", f.Status)
	}
}
