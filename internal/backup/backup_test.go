package backup_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"log/slog"

	"github.com/medveille/medveille/internal/backup"
)

// fakeStore is an in-memory DataStore recording export/import traffic.
type fakeStore struct {
	mu        sync.Mutex
	settings  map[string]string
	exportDoc []byte
	exports   int
	imports   [][]byte
	rejectAll bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		settings:  make(map[string]string),
		exportDoc: []byte(`{"workers":[]}`),
	}
}

func (f *fakeStore) ExportAll(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exports++
	return f.exportDoc, nil
}

func (f *fakeStore) ImportAll(ctx context.Context, data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rejectAll {
		return false
	}
	f.imports = append(f.imports, data)
	return true
}

func (f *fakeStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.settings[key]
	return v, ok, nil
}

func (f *fakeStore) PutSetting(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings[key] = value
	return nil
}

func (f *fakeStore) importCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.imports)
}

// failStrategy always refuses writes and reads.
type failStrategy struct{}

func (failStrategy) Name() string { return "broken" }

func (failStrategy) Write(context.Context, string, []byte) error {
	return errors.New("refused")
}

func (failStrategy) Read(context.Context, string) ([]byte, time.Time, error) {
	return nil, time.Time{}, errors.New("refused")
}

func newService(t *testing.T, ds backup.DataStore, chain ...backup.Strategy) *backup.Service {
	t.Helper()
	svc, err := backup.New(context.Background(), ds, slog.Default(), "backup.json", chain...)
	if err != nil {
		t.Fatalf("backup.New: %v", err)
	}
	return svc
}

func TestThresholdTriggersExportExactlyOnce(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	dir := backup.NewDirStrategy("dir", t.TempDir())
	svc := newService(t, fs, dir)
	if err := svc.SetConfig(ctx, 3, false); err != nil {
		t.Fatalf("set config: %v", err)
	}

	svc.RegisterChange(ctx)
	svc.RegisterChange(ctx)
	if fs.exports != 0 {
		t.Fatalf("export fired at threshold-1")
	}
	if svc.Meta().Counter != 2 {
		t.Fatalf("counter = %d, want 2", svc.Meta().Counter)
	}

	svc.RegisterChange(ctx)
	if fs.exports != 1 {
		t.Fatalf("exports = %d, want exactly 1 at threshold", fs.exports)
	}
	if svc.Meta().Counter != 0 {
		t.Fatalf("counter = %d, want reset to 0", svc.Meta().Counter)
	}
	if _, err := os.Stat(filepath.Join(dir.Path("backup.json"))); err != nil {
		t.Fatalf("backup file missing: %v", err)
	}
	if fs.settings["backup.counter"] != "0" {
		t.Fatalf("persisted counter = %q", fs.settings["backup.counter"])
	}
}

func TestFailedExportKeepsCounting(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	svc := newService(t, fs, failStrategy{})
	if err := svc.SetConfig(ctx, 2, false); err != nil {
		t.Fatalf("set config: %v", err)
	}

	svc.RegisterChange(ctx)
	svc.RegisterChange(ctx)
	if got := svc.Meta().Counter; got != 2 {
		t.Fatalf("counter = %d, want 2 kept after failed export", got)
	}
	svc.RegisterChange(ctx)
	if got := svc.Meta().Counter; got != 3 {
		t.Fatalf("counter = %d, want 3, export keeps retrying", got)
	}
}

func TestExportFallsBackDownTheChain(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	spool := backup.NewDirStrategy("spool", t.TempDir())
	svc := newService(t, fs, failStrategy{}, spool)

	if err := svc.Export(ctx); err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := os.Stat(spool.Path("backup.json")); err != nil {
		t.Fatalf("fallback strategy did not write: %v", err)
	}
}

func TestCounterPersistsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	svc := newService(t, fs, backup.NewDirStrategy("dir", t.TempDir()))
	svc.RegisterChange(ctx)
	svc.RegisterChange(ctx)

	// a new service over the same settings resumes the count
	svc2 := newService(t, fs, backup.NewDirStrategy("dir", t.TempDir()))
	if got := svc2.Meta().Counter; got != 2 {
		t.Fatalf("counter after restart = %d, want 2", got)
	}
}

func TestChooseDirectory(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	svc := newService(t, fs, failStrategy{})

	dir := t.TempDir()
	if err := svc.ChooseDirectory(ctx, dir); err != nil {
		t.Fatalf("choose directory: %v", err)
	}
	if fs.settings["backup.directory"] != dir {
		t.Fatalf("directory not persisted: %q", fs.settings["backup.directory"])
	}
	// the chosen directory now heads the chain, so exports land there
	if err := svc.Export(ctx); err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "backup.json")); err != nil {
		t.Fatalf("backup missing from chosen dir: %v", err)
	}

	if err := svc.ChooseDirectory(ctx, filepath.Join(dir, "missing", "\x00bad")); err == nil {
		t.Fatalf("unwritable directory accepted")
	}
}

func TestCheckAndAutoImport(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	dirPath := t.TempDir()
	dir := backup.NewDirStrategy("dir", dirPath)
	svc := newService(t, fs, dir)

	// disabled: nothing happens even with a file present
	if err := os.WriteFile(filepath.Join(dirPath, "backup.json"), []byte(`{"workers":[]}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	applied, err := svc.CheckAndAutoImport(ctx)
	if err != nil || applied {
		t.Fatalf("disabled auto-import ran: applied=%v err=%v", applied, err)
	}

	if err := svc.SetConfig(ctx, 10, true); err != nil {
		t.Fatalf("set config: %v", err)
	}
	applied, err = svc.CheckAndAutoImport(ctx)
	if err != nil || !applied {
		t.Fatalf("first check: applied=%v err=%v", applied, err)
	}
	if fs.importCount() != 1 {
		t.Fatalf("imports = %d", fs.importCount())
	}

	// unchanged file: not imported again
	applied, err = svc.CheckAndAutoImport(ctx)
	if err != nil || applied {
		t.Fatalf("second check re-imported: applied=%v err=%v", applied, err)
	}

	// touched file with a newer mtime: imported again
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(filepath.Join(dirPath, "backup.json"), future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	applied, err = svc.CheckAndAutoImport(ctx)
	if err != nil || !applied {
		t.Fatalf("third check: applied=%v err=%v", applied, err)
	}
}

func TestAutoImportRejectedDocument(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	fs.rejectAll = true
	dirPath := t.TempDir()
	svc := newService(t, fs, backup.NewDirStrategy("dir", dirPath))
	if err := svc.SetConfig(ctx, 10, true); err != nil {
		t.Fatalf("set config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dirPath, "backup.json"), []byte(`broken`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	applied, err := svc.CheckAndAutoImport(ctx)
	if applied || err == nil {
		t.Fatalf("rejected import reported as applied=%v err=%v", applied, err)
	}
	if svc.Meta().LastImported != 0 {
		t.Fatalf("last imported advanced past a rejected document")
	}
}

func TestWatchPicksUpBackupFile(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fs := newFakeStore()
	dirPath := t.TempDir()
	svc := newService(t, fs, backup.NewDirStrategy("dir", dirPath))
	if err := svc.SetConfig(ctx, 10, true); err != nil {
		t.Fatalf("set config: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- svc.Watch(ctx) }()

	// give the watcher a beat to install, then drop a backup file in
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dirPath, "backup.json"), []byte(`{"workers":[]}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for fs.importCount() == 0 {
		select {
		case <-deadline:
			t.Fatalf("watcher never imported the dropped file")
		case <-time.After(20 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("watch did not stop on cancel")
	}
}
