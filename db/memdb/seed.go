package memdb

import "github.com/pithecene-io/desklink/db"

// These inserts populate tables that have no create query (messages arrive
// from the network, calls from the modem) and let tests seed fixtures.

// InsertEvent stores an event and returns its id.
func (s *Store) InsertEvent(e db.Event) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.allocID("events")
	s.events[e.ID] = e
	return e.ID
}

// InsertSMS stores a message, creating or refreshing its thread, and returns
// the message id. A zero ThreadID selects the thread of the same number.
func (s *Store) InsertSMS(m db.SMS) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	th, ok := s.threads[m.ThreadID]
	if !ok {
		for _, t := range s.threads {
			if t.PhoneNumber == m.PhoneNumber {
				th, ok = t, true
				break
			}
		}
	}
	if !ok {
		th = db.Thread{ID: s.allocID("threads"), PhoneNumber: m.PhoneNumber, ContactID: m.ContactID}
	}
	th.MsgCount++
	if m.Type == db.SMSTypeInbox {
		th.UnreadMsgCount++
	}
	if m.Date >= th.Date {
		th.Date = m.Date
		th.Snippet = m.Body
		th.Type = m.Type
	}
	s.threads[th.ID] = th

	m.ThreadID = th.ID
	m.ID = s.allocID("sms")
	s.sms[m.ID] = m
	return m.ID
}

// InsertCalllog stores a call log entry and returns its id.
func (s *Store) InsertCalllog(c db.Calllog) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.allocID("calllog")
	s.calllog[c.ID] = c
	return c.ID
}

// InsertContact stores a contact without duplicate checks and returns its id.
func (s *Store) InsertContact(c db.Contact) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.allocID("contacts")
	s.contacts[c.ID] = c
	return c.ID
}

// InsertTemplate stores a template and returns its id.
func (s *Store) InsertTemplate(t db.Template) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.allocID("templates")
	s.templates[t.ID] = t
	return t.ID
}

// Clear drops every record. Used by factory reset.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.events)
	clear(s.sms)
	clear(s.threads)
	clear(s.templates)
	clear(s.calllog)
	clear(s.contacts)
	clear(s.nextID)
}
