package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Strategy is one way of durably writing and reading the backup file. The
// service walks its strategies in order and falls back to the next one when a
// write fails.
type Strategy interface {
	Name() string
	Write(ctx context.Context, filename string, data []byte) error
	Read(ctx context.Context, filename string) ([]byte, time.Time, error)
}

// DirStrategy reads and writes the backup file inside a fixed directory.
type DirStrategy struct {
	name string
	dir  string
}

func NewDirStrategy(name, dir string) *DirStrategy {
	return &DirStrategy{name: name, dir: dir}
}

// NewDocumentsStrategy targets an application subfolder under the user's
// Documents directory.
func NewDocumentsStrategy(appFolder string) (*DirStrategy, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("backup: resolve home: %w", err)
	}
	return NewDirStrategy("documents", filepath.Join(home, "Documents", appFolder)), nil
}

func (d *DirStrategy) Name() string {
	return d.name
}

// Path returns the full path of the named backup file; the auto-import
// watcher uses it to pick the location to watch.
func (d *DirStrategy) Path(filename string) string {
	return filepath.Join(d.dir, filename)
}

// Write stores the file through a temp-file rename so a reader never sees a
// half-written backup.
func (d *DirStrategy) Write(ctx context.Context, filename string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("backup: create dir %s: %w", d.dir, err)
	}
	tmp, err := os.CreateTemp(d.dir, filename+".tmp-*")
	if err != nil {
		return fmt.Errorf("backup: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("backup: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("backup: close: %w", err)
	}
	if err := os.Rename(tmpName, d.Path(filename)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("backup: rename: %w", err)
	}
	return nil
}

func (d *DirStrategy) Read(ctx context.Context, filename string) ([]byte, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, time.Time{}, err
	}
	p := d.Path(filename)
	info, err := os.Stat(p)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("backup: stat %s: %w", p, err)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("backup: read %s: %w", p, err)
	}
	return data, info.ModTime(), nil
}
