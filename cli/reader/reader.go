// Package reader is the read side of the desklink CLI.
//
// Read-only commands never touch the serving runtime. They read the
// settings store for update history, the update directories for waiting
// packages and the journal for records and session metrics.
package reader

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/pithecene-io/desklink/lode"
	"github.com/pithecene-io/desklink/settings"
	"github.com/pithecene-io/desklink/update"
)

// ErrNoJournal is returned by journal reads when no journal is configured.
var ErrNoJournal = errors.New("no journal configured")

// Reader abstracts read-only data access for CLI commands.
type Reader interface {
	History(ctx context.Context) ([]HistoryEntry, error)
	HistoryStats(ctx context.Context) (*HistoryStats, error)
	Packages() ([]PackageItem, error)
	Journal(ctx context.Context, kind string) ([]JournalEntry, error)
	Metrics(ctx context.Context) (*MetricsSnapshot, error)
}

// Packager lists update packages. *update.Engine implements it.
type Packager interface {
	Packages() ([]update.Package, error)
	CheckForUpdate() (string, *update.VersionInfo, error)
}

// Sources are the stores a Store reads. Any of them may be nil; reads that
// need a missing source fail or come back empty.
type Sources struct {
	Settings settings.Store
	Journal  *lode.Journal
	Packages Packager
}

// Store reads from live desklink stores.
type Store struct {
	src Sources
}

// New creates a Store.
func New(src Sources) *Store {
	return &Store{src: src}
}

var _ Reader = (*Store)(nil)

// History returns the update runs, newest first.
func (s *Store) History(ctx context.Context) ([]HistoryEntry, error) {
	if s.src.Settings == nil {
		return nil, nil
	}
	runs, err := update.LoadHistory(ctx, s.src.Settings)
	if err != nil {
		return nil, err
	}
	out := make([]HistoryEntry, 0, len(runs))
	for i := len(runs) - 1; i >= 0; i-- {
		out = append(out, historyEntry(runs[i]))
	}
	return out, nil
}

func historyEntry(r update.RunStatus) HistoryEntry {
	e := HistoryEntry{
		FromVersion: r.FromVersion,
		ToVersion:   r.ToVersion,
		File:        r.UpdateFile,
		State:       r.FinishedState.String(),
		Result:      ResultFailed,
		Message:     r.Message,
	}
	if started, err := r.Started(); err == nil {
		e.Started = started.UTC()
	}
	if r.Succeeded() {
		e.Result = ResultSucceeded
	}
	if r.FinishedError != update.NoError {
		e.Error = r.FinishedError.String()
	}
	return e
}

// HistoryStats aggregates the update history.
func (s *Store) HistoryStats(ctx context.Context) (*HistoryStats, error) {
	if s.src.Settings == nil {
		return &HistoryStats{}, nil
	}
	runs, err := update.LoadHistory(ctx, s.src.Settings)
	if err != nil {
		return nil, err
	}
	stats := &HistoryStats{Total: len(runs)}
	for _, r := range runs {
		switch {
		case r.Succeeded():
			stats.Succeeded++
			stats.LastVersion = r.ToVersion
		case r.FinishedError == update.UpdateAborted:
			stats.Aborted++
		default:
			stats.Failed++
		}
	}
	if len(runs) > 0 {
		if started, err := runs[len(runs)-1].Started(); err == nil {
			t := started.UTC()
			stats.LastStartedAt = &t
		}
	}
	return stats, nil
}

// Packages lists waiting update packages in name order.
func (s *Store) Packages() ([]PackageItem, error) {
	if s.src.Packages == nil {
		return nil, nil
	}
	pkgs, err := s.src.Packages.Packages()
	if err != nil {
		return nil, err
	}
	next, _, err := s.src.Packages.CheckForUpdate()
	if err != nil {
		return nil, err
	}
	out := make([]PackageItem, 0, len(pkgs))
	for _, p := range pkgs {
		item := PackageItem{
			File:        p.Name,
			Size:        p.Size,
			Version:     p.Version.Version(),
			Installable: p.Version.Version() != "",
			Next:        next != "" && filepath.Base(next) == p.Name,
		}
		if p.Version != nil {
			item.GitRevision = p.Version.GitRevision
		}
		out = append(out, item)
	}
	return out, nil
}

// Journal returns the records of kind, newest first.
func (s *Store) Journal(ctx context.Context, kind string) ([]JournalEntry, error) {
	if s.src.Journal == nil {
		return nil, ErrNoJournal
	}
	recs, err := s.src.Journal.Records(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := make([]JournalEntry, 0, len(recs))
	for i := len(recs) - 1; i >= 0; i-- {
		out = append(out, journalEntry(recs[i]))
	}
	return out, nil
}

// internalFields are partition and bookkeeping fields every record carries.
var internalFields = []string{"ts", "kind", "record_kind", "device", "day"}

func journalEntry(rec map[string]any) JournalEntry {
	e := JournalEntry{
		Ts:     toString(rec["ts"]),
		Kind:   toString(rec["record_kind"]),
		Fields: make(map[string]any, len(rec)),
	}
	for k, v := range rec {
		e.Fields[k] = v
	}
	for _, k := range internalFields {
		delete(e.Fields, k)
	}
	return e
}

// Metrics returns the newest session metrics record.
func (s *Store) Metrics(ctx context.Context) (*MetricsSnapshot, error) {
	if s.src.Journal == nil {
		return nil, ErrNoJournal
	}
	rec, err := s.src.Journal.Latest(ctx, lode.KindMetrics)
	if err != nil {
		return nil, err
	}
	return ParseMetricsRecord(rec)
}
