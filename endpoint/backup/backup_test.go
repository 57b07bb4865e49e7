package backup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pithecene-io/desklink/backup"
	"github.com/pithecene-io/desklink/device"
	"github.com/pithecene-io/desklink/endpoint"
	"github.com/pithecene-io/desklink/endpoint/endpointtest"
	"github.com/pithecene-io/desklink/types"
)

type fixture struct {
	user string
	sim  *device.Simulator
	m    *backup.Manager
	rec  *endpointtest.Recorder
	deps endpoint.Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		user: filepath.Join(root, "user"),
		sim:  device.NewSimulator(device.Config{Root: root}),
		rec:  endpointtest.NewRecorder(),
	}
	boot := filepath.Join(root, "sys", "boot.json")
	for path, body := range map[string]string{
		boot:                              "{}",
		filepath.Join(f.user, "notes.db"): "v1",
	} {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	f.m = backup.New(backup.Config{
		UserDir:   f.user,
		BackupDir: filepath.Join(root, "sys", "backup"),
		TmpDir:    filepath.Join(root, "sys", "tmp"),
		BootJSON:  boot,
		Device:    f.sim,
	})
	f.deps = endpoint.Deps{Sender: f.rec}
	return f
}

func TestBackupThenList(t *testing.T) {
	f := newFixture(t)
	h := New(f.deps, f.m)

	h.Handle(endpointtest.Request(t, types.EndpointBackup, types.MethodPost, 1, nil))
	fr := f.rec.Wait(t, 1)[0]
	if fr.Status != types.StatusOK {
		t.Fatalf("POST Status = %d, want 200", fr.Status)
	}
	var created FileBody
	fr.DecodeBody(t, &created)
	if created.BackupFile == "" {
		t.Fatal("no backupFile in response")
	}

	h.Handle(endpointtest.Request(t, types.EndpointBackup, types.MethodGet, 2, nil))
	var list ListBody
	f.rec.Wait(t, 2)[1].DecodeBody(t, &list)
	if len(list.Backups) != 1 || list.Backups[0] != created.BackupFile {
		t.Errorf("list = %v", list.Backups)
	}
}

func TestRestore(t *testing.T) {
	f := newFixture(t)
	res, err := f.m.Backup(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(f.user, "notes.db"), []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := NewRestore(f.deps, f.m)
	h.Handle(endpointtest.Request(t, types.EndpointRestore, types.MethodPost, 3, map[string]any{"backupFile": res.Name}))
	h.Wait()

	frames := f.rec.Frames(t)
	if len(frames) != 1 || frames[0].Status != types.StatusAccepted {
		t.Fatalf("frames = %+v, want a single 202", frames)
	}
	data, _ := os.ReadFile(filepath.Join(f.user, "notes.db"))
	if string(data) != "v1" {
		t.Errorf("notes.db = %q, want v1", data)
	}
	if r := f.sim.Reboots(); len(r) != 1 || r[0] != device.RebootRestore {
		t.Errorf("Reboots = %v", r)
	}
}

func TestRestore_Rejections(t *testing.T) {
	tests := []struct {
		name string
		body any
		want types.Status
	}{
		{"no body", nil, types.StatusBadRequest},
		{"empty name", map[string]any{"backupFile": ""}, types.StatusBadRequest},
		{"bad name", map[string]any{"backupFile": "../x.tar"}, types.StatusBadRequest},
		{"missing", map[string]any{"backupFile": "none.tar"}, types.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			h := NewRestore(f.deps, f.m)
			h.Handle(endpointtest.Request(t, types.EndpointRestore, types.MethodPost, 4, tt.body))
			if got := f.rec.Wait(t, 1)[0].Status; got != tt.want {
				t.Errorf("Status = %d, want %d", got, tt.want)
			}
			if len(f.sim.Reboots()) != 0 {
				t.Error("rebooted on rejected request")
			}
		})
	}
}

func TestRestore_FailureReported(t *testing.T) {
	f := newFixture(t)
	dir := filepath.Join(filepath.Dir(f.user), "sys", "backup")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.tar"), []byte("not a tar archive at all"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := NewRestore(f.deps, f.m)
	h.Handle(endpointtest.Request(t, types.EndpointRestore, types.MethodPost, 5, map[string]any{"backupFile": "broken.tar"}))
	h.Wait()

	frames := f.rec.Frames(t)
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if frames[1].Status != types.StatusInternalServerError || frames[1].UUID != "5" {
		t.Errorf("failure frame = %+v", frames[1])
	}
}

func TestUnsupportedMethod(t *testing.T) {
	f := newFixture(t)
	New(f.deps, f.m).Handle(endpointtest.Request(t, types.EndpointBackup, types.MethodDel, 6, nil))
	if got := f.rec.Wait(t, 1)[0].Status; got != types.StatusBadRequest {
		t.Errorf("Status = %d, want 400", got)
	}
}
