// Package lode journals device activity to a Lode dataset.
//
// Every update run, backup, restore, factory reset, device event and the
// session metrics snapshot becomes one JSONL record, Hive-partitioned by
// device serial, UTC day and record kind:
//
//	datasets/desklink/partitions/device=<serial>/day=<YYYY-MM-DD>/kind=<kind>/...
//
// Backup archives exported with PutFile land next to the records under
// files/. The store is a local directory, S3 or memory.
package lode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/desklink/metrics"
)

// DefaultDataset is the dataset id used when Config.Dataset is empty.
const DefaultDataset = "desklink"

// Record kinds.
const (
	KindUpdate       = "update"
	KindBackup       = "backup"
	KindRestore      = "restore"
	KindFactoryReset = "factory_reset"
	KindDeviceEvent  = "device_event"
	KindMetrics      = "metrics"
)

// partitionKeys is the Hive layout. Records carry each key as a field.
var partitionKeys = []string{"device", "day", "kind"}

// ErrNoRecords is returned by Latest when no record of the kind exists.
var ErrNoRecords = errors.New("no journal records found")

// Config names the dataset and the device partition.
type Config struct {
	Dataset string
	// Device is the device serial number partition value.
	Device string
}

func (c Config) withDefaults() Config {
	if c.Dataset == "" {
		c.Dataset = DefaultDataset
	}
	if c.Device == "" {
		c.Device = "unknown"
	}
	return c
}

// DeriveDay is the UTC day partition value of t.
func DeriveDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Journal writes and reads journal records.
type Journal struct {
	cfg       Config
	dataset   lode.Dataset
	collector *metrics.Collector
	now       func() time.Time

	factory   lode.StoreFactory
	storeOnce sync.Once
	store     lode.Store
	storeErr  error
}

// New creates a journal over factory. collector may be nil.
func New(cfg Config, factory lode.StoreFactory, collector *metrics.Collector) (*Journal, error) {
	cfg = cfg.withDefaults()
	ds, err := lode.NewDataset(
		lode.DatasetID(cfg.Dataset),
		factory,
		lode.WithHiveLayout(partitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
	if err != nil {
		return nil, wrap("init", cfg.Dataset, err)
	}
	return &Journal{
		cfg:       cfg,
		dataset:   ds,
		collector: collector,
		now:       time.Now,
		factory:   factory,
	}, nil
}

// NewFS creates a journal stored under root.
func NewFS(cfg Config, root string, collector *metrics.Collector) (*Journal, error) {
	return New(cfg, lode.NewFSFactory(root), collector)
}

// NewMemory creates a journal held in memory.
func NewMemory(cfg Config, collector *metrics.Collector) (*Journal, error) {
	return New(cfg, lode.NewMemoryFactory(), collector)
}

// Config returns the effective configuration.
func (j *Journal) Config() Config { return j.cfg }

// Record writes one record of kind. Fields named like partition keys,
// "record_kind" or "ts" are overwritten.
func (j *Journal) Record(ctx context.Context, kind string, fields map[string]any) error {
	ts := j.now().UTC()
	rec := make(map[string]any, len(fields)+5)
	for k, v := range fields {
		rec[k] = v
	}
	rec["record_kind"] = kind
	rec["kind"] = kind
	rec["device"] = j.cfg.Device
	rec["day"] = DeriveDay(ts)
	rec["ts"] = ts.Format(time.RFC3339Nano)

	_, err := j.dataset.Write(ctx, []any{rec}, lode.Metadata{})
	if err != nil {
		j.collector.IncJournalWriteFailure()
		return wrap("write", j.cfg.Dataset+"/"+kind, err)
	}
	j.collector.IncJournalWriteSuccess()
	return nil
}

// RecordMetrics writes a metrics snapshot record.
func (j *Journal) RecordMetrics(ctx context.Context, snap metrics.Snapshot) error {
	return j.Record(ctx, KindMetrics, snap.Fields())
}

// FilePath is the object key PutFile writes name to.
func (j *Journal) FilePath(name string) string {
	return fmt.Sprintf("datasets/%s/partitions/device=%s/day=%s/files/%s",
		j.cfg.Dataset, j.cfg.Device, DeriveDay(j.now()), name)
}

// PutFile stores r under the files/ prefix of today's device partition and
// returns the object key. name must be a bare file name.
func (j *Journal) PutFile(ctx context.Context, name string, r io.Reader) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid journal file name %q", name)
	}
	store, err := j.getStore()
	if err != nil {
		return "", wrap("init", j.cfg.Dataset, err)
	}
	path := j.FilePath(name)
	if err := store.Put(ctx, path, r); err != nil {
		j.collector.IncJournalWriteFailure()
		return "", wrap("put", path, err)
	}
	j.collector.IncJournalWriteSuccess()
	return path, nil
}

func (j *Journal) getStore() (lode.Store, error) {
	j.storeOnce.Do(func() {
		j.store, j.storeErr = j.factory()
	})
	return j.store, j.storeErr
}

// Records returns every record of kind for this device, oldest first.
func (j *Journal) Records(ctx context.Context, kind string) ([]map[string]any, error) {
	var out []map[string]any
	err := j.scan(ctx, kind, func(rec map[string]any) bool {
		out = append(out, rec)
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(a, b int) bool {
		return stringField(out[a], "ts") < stringField(out[b], "ts")
	})
	return out, nil
}

// Latest returns the newest record of kind for this device.
func (j *Journal) Latest(ctx context.Context, kind string) (map[string]any, error) {
	recs, err := j.Records(ctx, kind)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNoRecords
	}
	return recs[len(recs)-1], nil
}

// scan visits matching records snapshot by snapshot. Manifest paths are a
// coarse filter; record fields decide.
func (j *Journal) scan(ctx context.Context, kind string, visit func(map[string]any) bool) error {
	snapshots, err := j.dataset.Snapshots(ctx)
	if err != nil {
		return wrap("read", j.cfg.Dataset+"/snapshots", err)
	}
	for _, snap := range snapshots {
		if !snapshotHas(snap, "kind", kind) || !snapshotHas(snap, "device", j.cfg.Device) {
			continue
		}
		data, err := j.dataset.Read(ctx, snap.ID)
		if err != nil {
			return wrap("read", fmt.Sprintf("%s/snapshot/%s", j.cfg.Dataset, snap.ID), err)
		}
		for _, item := range data {
			rec, ok := item.(map[string]any)
			if !ok || rec["record_kind"] != kind || stringField(rec, "device") != j.cfg.Device {
				continue
			}
			if !visit(rec) {
				return nil
			}
		}
	}
	return nil
}

func snapshotHas(snap *lode.Snapshot, key, value string) bool {
	for _, f := range snap.Manifest.Files {
		if hasPartition(f.Path, key, value) {
			return true
		}
	}
	return false
}

// hasPartition matches a whole key=value path segment so that
// kind=update does not match kind=update_x.
func hasPartition(path, key, value string) bool {
	segment := key + "=" + value
	for _, part := range strings.Split(path, "/") {
		if part == segment {
			return true
		}
	}
	return false
}

func stringField(rec map[string]any, key string) string {
	s, _ := rec[key].(string)
	return s
}

// Close releases the journal. The Lode dataset holds no open handles.
func (j *Journal) Close() error { return nil }
