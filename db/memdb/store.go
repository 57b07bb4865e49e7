// Package memdb is an in-memory record store implementing db.Executor.
//
// Tables are plain maps guarded by one mutex. A store can be persisted to a
// msgpack snapshot file so the device keeps its data across restarts and the
// backup endpoint can archive it.
package memdb

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pithecene-io/desklink/db"
)

// ErrNotFound is returned when a query addresses a missing record.
var ErrNotFound = db.ErrNotFound

// Store holds all tables.
type Store struct {
	mu sync.Mutex

	events    map[uint32]db.Event
	sms       map[uint32]db.SMS
	threads   map[uint32]db.Thread
	templates map[uint32]db.Template
	calllog   map[uint32]db.Calllog
	contacts  map[uint32]db.Contact

	nextID map[string]uint32
	path   string
}

var _ db.Executor = (*Store)(nil)

// New creates an empty store that is not backed by a file.
func New() *Store {
	return &Store{
		events:    make(map[uint32]db.Event),
		sms:       make(map[uint32]db.SMS),
		threads:   make(map[uint32]db.Thread),
		templates: make(map[uint32]db.Template),
		calllog:   make(map[uint32]db.Calllog),
		contacts:  make(map[uint32]db.Contact),
		nextID:    make(map[string]uint32),
	}
}

func (s *Store) allocID(table string) uint32 {
	s.nextID[table]++
	return s.nextID[table]
}

// Execute runs q. Each query kind is handled by exactly one case.
func (s *Store) Execute(ctx context.Context, q db.Query) (db.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	result, err := s.execute(q)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", q.Name(), err)
	}
	return result, nil
}

func (s *Store) execute(q db.Query) (db.Result, error) {
	switch q := q.(type) {
	// calendar
	case *db.EventsGetAllLimited:
		all := s.sortedEvents()
		r := &db.EventsResult{Records: page(all, q.Offset, q.Limit), TotalCount: uint32(len(all))}
		r.SetRequest(q)
		return r, nil
	case *db.EventsAdd:
		if _, ok := s.eventByUID(q.Record.UID); ok {
			return success(q, false), nil
		}
		rec := q.Record
		rec.ID = s.allocID("events")
		s.events[rec.ID] = rec
		r := success(q, true)
		r.SetRecordID(rec.ID)
		return r, nil
	case *db.EventsEdit:
		existing, ok := s.eventByUID(q.Record.UID)
		if !ok {
			return success(q, false), nil
		}
		rec := q.Record
		rec.ID = existing.ID
		s.events[rec.ID] = rec
		return success(q, true), nil
	case *db.EventsRemove:
		existing, ok := s.eventByUID(q.UID)
		if ok {
			delete(s.events, existing.ID)
		}
		return success(q, ok), nil

	// messages
	case *db.SMSGetCount:
		return count(q, len(s.sms)), nil
	case *db.SMSGetByID:
		rec, ok := s.sms[q.ID]
		if !ok {
			return nil, fmt.Errorf("sms %d: %w", q.ID, ErrNotFound)
		}
		r := &db.SMSResult{Records: []db.SMS{rec}, TotalCount: 1}
		r.SetRequest(q)
		return r, nil
	case *db.SMSGetByContactID:
		recs := filter(s.sortedSMS(), func(m db.SMS) bool { return m.ContactID == q.ContactID })
		r := &db.SMSResult{Records: recs, TotalCount: uint32(len(recs))}
		r.SetRequest(q)
		return r, nil
	case *db.SMSGetByThreadID:
		recs := filter(s.sortedSMS(), func(m db.SMS) bool { return m.ThreadID == q.ThreadID })
		r := &db.SMSResult{Records: page(recs, q.Offset, q.Limit), TotalCount: uint32(len(recs))}
		r.SetRequest(q)
		return r, nil
	case *db.SMSGetByText:
		recs := filter(s.sortedSMS(), func(m db.SMS) bool { return strings.Contains(m.Body, q.Text) })
		r := &db.SMSResult{Records: recs, TotalCount: uint32(len(recs))}
		r.SetRequest(q)
		return r, nil
	case *db.SMSGetLimited:
		all := s.sortedSMS()
		r := &db.SMSResult{Records: page(all, q.Offset, q.Limit), TotalCount: uint32(len(all))}
		r.SetRequest(q)
		return r, nil
	case *db.SMSRemove:
		return success(q, s.removeSMS(q.ID)), nil
	case *db.ThreadMarkAsRead:
		th, ok := s.threads[q.ThreadID]
		if !ok {
			return success(q, false), nil
		}
		if q.Read {
			th.UnreadMsgCount = 0
		} else {
			th.UnreadMsgCount = 1
		}
		s.threads[th.ID] = th
		return success(q, true), nil
	case *db.ThreadsGetLimited:
		all := s.sortedThreads()
		r := &db.ThreadsResult{Records: page(all, q.Offset, q.Limit), TotalCount: uint32(len(all))}
		r.SetRequest(q)
		return r, nil

	// templates
	case *db.TemplateGetCount:
		return count(q, len(s.templates)), nil
	case *db.TemplateGetByID:
		rec, ok := s.templates[q.ID]
		if !ok {
			return nil, fmt.Errorf("template %d: %w", q.ID, ErrNotFound)
		}
		r := &db.TemplatesResult{Records: []db.Template{rec}, TotalCount: 1}
		r.SetRequest(q)
		return r, nil
	case *db.TemplateGetLimited:
		all := sortedByID(s.templates, func(t db.Template) uint32 { return t.ID })
		r := &db.TemplatesResult{Records: page(all, q.Offset, q.Limit), TotalCount: uint32(len(all))}
		r.SetRequest(q)
		return r, nil
	case *db.TemplateAdd:
		rec := q.Record
		rec.ID = s.allocID("templates")
		s.templates[rec.ID] = rec
		r := success(q, true)
		r.SetRecordID(rec.ID)
		return r, nil
	case *db.TemplateUpdate:
		if _, ok := s.templates[q.Record.ID]; !ok {
			return success(q, false), nil
		}
		s.templates[q.Record.ID] = q.Record
		return success(q, true), nil
	case *db.TemplateRemove:
		_, ok := s.templates[q.ID]
		delete(s.templates, q.ID)
		return success(q, ok), nil

	// calllog
	case *db.CalllogGetCount:
		return count(q, len(s.calllog)), nil
	case *db.CalllogGetByContactID:
		recs := filter(s.sortedCalllog(), func(c db.Calllog) bool { return c.ContactID == q.ContactID })
		r := &db.CalllogResult{Records: recs, TotalCount: uint32(len(recs))}
		r.SetRequest(q)
		return r, nil
	case *db.CalllogGetLimited:
		all := s.sortedCalllog()
		r := &db.CalllogResult{Records: page(all, q.Offset, q.Limit), TotalCount: uint32(len(all))}
		r.SetRequest(q)
		return r, nil
	case *db.CalllogRemove:
		_, ok := s.calllog[q.ID]
		delete(s.calllog, q.ID)
		return success(q, ok), nil

	// contacts
	case *db.ContactGetCount:
		return count(q, len(s.contacts)), nil
	case *db.ContactGetByID:
		rec, ok := s.contacts[q.ID]
		if !ok {
			return nil, fmt.Errorf("contact %d: %w", q.ID, ErrNotFound)
		}
		r := &db.ContactsResult{Records: []db.Contact{rec}, TotalCount: 1}
		r.SetRequest(q)
		return r, nil
	case *db.ContactGetLimited:
		all := s.sortedContacts()
		r := &db.ContactsResult{Records: page(all, q.Offset, q.Limit), TotalCount: uint32(len(all))}
		r.SetRequest(q)
		return r, nil
	case *db.ContactAdd:
		r := &db.ContactAddResult{}
		r.SetRequest(q)
		if dup, ok := s.contactByNumber(q.Record.Numbers, 0); ok {
			r.Duplicated = true
			r.DuplicateID = dup
			return r, nil
		}
		rec := q.Record
		rec.ID = s.allocID("contacts")
		s.contacts[rec.ID] = rec
		r.Succeed = true
		r.ID = rec.ID
		r.SetRecordID(rec.ID)
		return r, nil
	case *db.ContactUpdate:
		if _, ok := s.contacts[q.Record.ID]; !ok {
			return success(q, false), nil
		}
		s.contacts[q.Record.ID] = q.Record
		return success(q, true), nil
	case *db.ContactRemove:
		_, ok := s.contacts[q.ID]
		delete(s.contacts, q.ID)
		return success(q, ok), nil

	default:
		return nil, fmt.Errorf("unsupported query %T", q)
	}
}

func success(q db.Query, ok bool) *db.SuccessResult {
	r := &db.SuccessResult{Succeed: ok}
	r.SetRequest(q)
	return r
}

func count(q db.Query, n int) *db.CountResult {
	r := &db.CountResult{Count: uint32(n)}
	r.SetRequest(q)
	return r
}

// page returns records[offset:offset+limit]. A zero limit means no limit.
func page[T any](records []T, offset, limit uint32) []T {
	if int(offset) >= len(records) {
		return []T{}
	}
	end := len(records)
	if limit > 0 && int(offset+limit) < end {
		end = int(offset + limit)
	}
	return append([]T(nil), records[offset:end]...)
}

func filter[T any](records []T, keep func(T) bool) []T {
	out := make([]T, 0, len(records))
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func sortedByID[T any](m map[uint32]T, id func(T) uint32) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}

func (s *Store) sortedEvents() []db.Event {
	out := sortedByID(s.events, func(e db.Event) uint32 { return e.ID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func (s *Store) sortedSMS() []db.SMS {
	out := sortedByID(s.sms, func(m db.SMS) uint32 { return m.ID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}

func (s *Store) sortedThreads() []db.Thread {
	out := sortedByID(s.threads, func(t db.Thread) uint32 { return t.ID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}

func (s *Store) sortedCalllog() []db.Calllog {
	out := sortedByID(s.calllog, func(c db.Calllog) uint32 { return c.ID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}

func (s *Store) sortedContacts() []db.Contact {
	out := sortedByID(s.contacts, func(c db.Contact) uint32 { return c.ID })
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].PrimaryName+out[i].AlternativeName) <
			strings.ToLower(out[j].PrimaryName+out[j].AlternativeName)
	})
	return out
}

func (s *Store) eventByUID(uid string) (db.Event, bool) {
	for _, e := range s.events {
		if e.UID == uid {
			return e, true
		}
	}
	return db.Event{}, false
}

// contactByNumber returns the id of a contact other than exclude that holds
// one of numbers.
func (s *Store) contactByNumber(numbers []string, exclude uint32) (uint32, bool) {
	want := make(map[string]struct{}, len(numbers))
	for _, n := range numbers {
		if n = normalizeNumber(n); n != "" {
			want[n] = struct{}{}
		}
	}
	for _, c := range sortedByID(s.contacts, func(c db.Contact) uint32 { return c.ID }) {
		if c.ID == exclude {
			continue
		}
		for _, n := range c.Numbers {
			if _, ok := want[normalizeNumber(n)]; ok {
				return c.ID, true
			}
		}
	}
	return 0, false
}

func normalizeNumber(n string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, n)
}

// removeSMS deletes a message and keeps its thread counters consistent.
func (s *Store) removeSMS(id uint32) bool {
	msg, ok := s.sms[id]
	if !ok {
		return false
	}
	delete(s.sms, id)
	th, ok := s.threads[msg.ThreadID]
	if !ok {
		return true
	}
	if th.MsgCount > 0 {
		th.MsgCount--
	}
	if th.MsgCount == 0 {
		delete(s.threads, th.ID)
		return true
	}
	s.threads[th.ID] = th
	return true
}
