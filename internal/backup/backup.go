// Package backup wraps every store mutation with a persisted change counter
// and turns the data into a self-backing-up file: past a threshold of changes
// a full export is written through the active strategy, and a watched backup
// file written by another device can be pulled back in automatically.
package backup

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"log/slog"

	"github.com/medveille/medveille/internal/models"
)

// DefaultThreshold is the number of mutations before an automatic export.
const DefaultThreshold = 10

// DataStore is the slice of the domain store the backup service needs.
type DataStore interface {
	ExportAll(ctx context.Context) ([]byte, error)
	ImportAll(ctx context.Context, data []byte) bool
	GetSetting(ctx context.Context, key string) (string, bool, error)
	PutSetting(ctx context.Context, key, value string) error
}

// Persisted state keys.
const (
	keyThreshold    = "backup.threshold"
	keyCounter      = "backup.counter"
	keyAutoImport   = "backup.auto_import"
	keyLastImported = "backup.last_imported"
	keyDirectory    = "backup.directory"
)

// Service owns the backup state explicitly; there is no ambient module
// state. All fields persist across restarts through the store settings.
type Service struct {
	ds       DataStore
	logger   *slog.Logger
	filename string

	mu    sync.Mutex
	meta  models.BackupMeta
	chain []Strategy
}

// New loads persisted backup state and builds the strategy chain. A
// previously chosen directory is restored at the front of the chain.
func New(ctx context.Context, ds DataStore, logger *slog.Logger, filename string, chain ...Strategy) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		ds:       ds,
		logger:   logger,
		filename: filename,
		chain:    chain,
		meta:     models.BackupMeta{Threshold: DefaultThreshold},
	}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	if s.meta.Directory != "" {
		s.chain = append([]Strategy{NewDirStrategy("directory", s.meta.Directory)}, s.chain...)
	}
	return s, nil
}

func (s *Service) load(ctx context.Context) error {
	if v, ok, err := s.ds.GetSetting(ctx, keyThreshold); err != nil {
		return err
	} else if ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.meta.Threshold = n
		}
	}
	if v, ok, err := s.ds.GetSetting(ctx, keyCounter); err != nil {
		return err
	} else if ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			s.meta.Counter = n
		}
	}
	if v, ok, err := s.ds.GetSetting(ctx, keyAutoImport); err != nil {
		return err
	} else if ok {
		s.meta.AutoImport = v == "true"
	}
	if v, ok, err := s.ds.GetSetting(ctx, keyLastImported); err != nil {
		return err
	} else if ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			s.meta.LastImported = n
		}
	}
	if v, ok, err := s.ds.GetSetting(ctx, keyDirectory); err != nil {
		return err
	} else if ok {
		s.meta.Directory = v
	}
	return nil
}

// Meta returns a copy of the current backup state.
func (s *Service) Meta() models.BackupMeta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta
}

// Filename returns the backup file name the service writes and watches.
func (s *Service) Filename() string {
	return s.filename
}

// RegisterChange bumps the persisted change counter and, once the threshold
// is reached, runs a full export. The counter resets to zero only when the
// export succeeded; a failed export keeps counting so the next change
// retries.
func (s *Service) RegisterChange(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.meta.Counter++
	if err := s.ds.PutSetting(ctx, keyCounter, strconv.Itoa(s.meta.Counter)); err != nil {
		s.logger.Error("persist change counter", "err", err)
	}
	if s.meta.Counter < s.meta.Threshold {
		return
	}
	if err := s.export(ctx); err != nil {
		s.logger.Error("auto export failed", "err", err, "counter", s.meta.Counter)
		return
	}
	s.meta.Counter = 0
	if err := s.ds.PutSetting(ctx, keyCounter, "0"); err != nil {
		s.logger.Error("persist change counter", "err", err)
	}
}

// Export runs a manual full export through the strategy chain.
func (s *Service) Export(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.export(ctx)
}

// export walks the chain until one strategy accepts the write. Callers hold
// s.mu.
func (s *Service) export(ctx context.Context) error {
	data, err := s.ds.ExportAll(ctx)
	if err != nil {
		return fmt.Errorf("backup: export: %w", err)
	}
	var lastErr error
	for _, st := range s.chain {
		if err := st.Write(ctx, s.filename, data); err != nil {
			s.logger.Warn("backup write failed, falling back", "strategy", st.Name(), "err", err)
			lastErr = err
			continue
		}
		s.logger.Info("backup written", "strategy", st.Name(), "bytes", len(data))
		return nil
	}
	if lastErr == nil {
		lastErr = errors.New("backup: no strategy configured")
	}
	return lastErr
}

// SetConfig updates and persists the threshold and auto-import flag.
func (s *Service) SetConfig(ctx context.Context, threshold int, autoImport bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if threshold > 0 {
		s.meta.Threshold = threshold
		if err := s.ds.PutSetting(ctx, keyThreshold, strconv.Itoa(threshold)); err != nil {
			return err
		}
	}
	s.meta.AutoImport = autoImport
	return s.ds.PutSetting(ctx, keyAutoImport, strconv.FormatBool(autoImport))
}

// ChooseDirectory persists a user-selected backup directory and puts it at
// the front of the strategy chain. The directory is probed for writability
// first; a refusal surfaces as a plain error, never a crash.
func (s *Service) ChooseDirectory(ctx context.Context, dir string) error {
	probe := NewDirStrategy("directory", dir)
	if err := probe.Write(ctx, ".probe", []byte("ok")); err != nil {
		return fmt.Errorf("backup: directory not writable: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta.Directory = dir
	if err := s.ds.PutSetting(ctx, keyDirectory, dir); err != nil {
		return err
	}
	chain := []Strategy{probe}
	for _, st := range s.chain {
		if st.Name() != "directory" {
			chain = append(chain, st)
		}
	}
	s.chain = chain
	return nil
}

// CheckAndAutoImport pulls the backup file in when it is strictly newer than
// the last import. This is how a second device's backup propagates without a
// manual action. Returns whether an import was applied.
func (s *Service) CheckAndAutoImport(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if !s.meta.AutoImport {
		s.mu.Unlock()
		return false, nil
	}
	chain := s.chain
	last := s.meta.LastImported
	s.mu.Unlock()

	var (
		data    []byte
		modTime time.Time
		readErr error
	)
	found := false
	for _, st := range chain {
		data, modTime, readErr = st.Read(ctx, s.filename)
		if readErr == nil {
			found = true
			break
		}
	}
	if !found {
		// no backup file anywhere is not an error
		return false, nil
	}
	if modTime.UnixMilli() <= last {
		return false, nil
	}
	if !s.ds.ImportAll(ctx, data) {
		return false, errors.New("backup: auto import rejected document")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta.LastImported = modTime.UnixMilli()
	if err := s.ds.PutSetting(ctx, keyLastImported, strconv.FormatInt(s.meta.LastImported, 10)); err != nil {
		return true, err
	}
	s.logger.Info("auto import applied", "mod_time", modTime)
	return true, nil
}
