package memdb

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/desklink/db"
	"github.com/pithecene-io/desklink/iox"
)

// snapshot is the on-disk layout of a store.
type snapshot struct {
	Events    []db.Event        `msgpack:"events"`
	SMS       []db.SMS          `msgpack:"sms"`
	Threads   []db.Thread       `msgpack:"threads"`
	Templates []db.Template     `msgpack:"templates"`
	Calllog   []db.Calllog      `msgpack:"calllog"`
	Contacts  []db.Contact      `msgpack:"contacts"`
	NextID    map[string]uint32 `msgpack:"next_id"`
}

// Open loads the store persisted at path. A missing file yields an empty
// store that will be written to path on Flush.
func Open(path string) (*Store, error) {
	s := New()
	s.path = path
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload replaces the contents of the store with its backing file, as
// after a restore. A missing file empties the store.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	fresh := New()
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("cannot read database %q: %w", s.path, err)
	default:
		var snap snapshot
		if err := msgpack.Unmarshal(data, &snap); err != nil {
			return fmt.Errorf("invalid database file %s: %w", s.path, err)
		}
		fresh.fill(&snap)
	}

	s.mu.Lock()
	s.events, s.sms, s.threads = fresh.events, fresh.sms, fresh.threads
	s.templates, s.calllog, s.contacts = fresh.templates, fresh.calllog, fresh.contacts
	s.nextID = fresh.nextID
	s.mu.Unlock()
	return nil
}

func (s *Store) fill(snap *snapshot) {
	for _, r := range snap.Events {
		s.events[r.ID] = r
	}
	for _, r := range snap.SMS {
		s.sms[r.ID] = r
	}
	for _, r := range snap.Threads {
		s.threads[r.ID] = r
	}
	for _, r := range snap.Templates {
		s.templates[r.ID] = r
	}
	for _, r := range snap.Calllog {
		s.calllog[r.ID] = r
	}
	for _, r := range snap.Contacts {
		s.contacts[r.ID] = r
	}
	for k, v := range snap.NextID {
		s.nextID[k] = v
	}
}

// Path returns the backing file, or "" for a memory-only store.
func (s *Store) Path() string {
	return s.path
}

// Flush writes the store to its backing file. Memory-only stores are a no-op.
func (s *Store) Flush() error {
	if s.path == "" {
		return nil
	}
	s.mu.Lock()
	snap := snapshot{
		Events:    sortedByID(s.events, func(r db.Event) uint32 { return r.ID }),
		SMS:       sortedByID(s.sms, func(r db.SMS) uint32 { return r.ID }),
		Threads:   sortedByID(s.threads, func(r db.Thread) uint32 { return r.ID }),
		Templates: sortedByID(s.templates, func(r db.Template) uint32 { return r.ID }),
		Calllog:   sortedByID(s.calllog, func(r db.Calllog) uint32 { return r.ID }),
		Contacts:  sortedByID(s.contacts, func(r db.Contact) uint32 { return r.ID }),
		NextID:    make(map[string]uint32, len(s.nextID)),
	}
	for k, v := range s.nextID {
		snap.NextID[k] = v
	}
	s.mu.Unlock()

	data, err := msgpack.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("encode database: %w", err)
	}
	if err := iox.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write database: %w", err)
	}
	return nil
}
