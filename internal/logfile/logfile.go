// Package logfile owns the diagnostic log: a single current file that is
// only ever appended to, plus numbered historic copies produced by Rotate.
package logfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultHistorySlots is the number of numbered historic logs kept.
const DefaultHistorySlots = 99

// ErrNoSlot is returned by Rotate when history is disabled.
var ErrNoSlot = errors.New("logfile: no historic log slot available")

// File is the current log file. It is safe for concurrent use; every write
// and the rotation itself run under the same lock.
type File struct {
	mu    sync.Mutex
	path  string
	slots int
	f     *os.File
}

// Open opens (or creates) the current log at path and positions the write
// offset at the end. The file is not opened with O_APPEND because Rotate
// needs to rewind and truncate it.
func Open(path string, slots int) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("seek log file: %w", err)
	}

	return &File{path: path, slots: slots, f: f}, nil
}

// Path returns the location of the current log.
func (l *File) Path() string {
	return l.path
}

// Write appends p to the current log.
func (l *File) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.f.Write(p)
}

// Sync flushes the current log to stable storage.
func (l *File) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.f.Sync()
}

// Close flushes and closes the current log.
func (l *File) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.f.Sync(); err != nil {
		_ = l.f.Close()
		return err
	}
	return l.f.Close()
}

// HistoricPath returns the path of historic slot n, e.g. limiter.3.log for
// a current log named limiter.log.
func (l *File) HistoricPath(n int) string {
	return historicPath(l.path, n)
}

func historicPath(path string, n int) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	return base + "." + strconv.Itoa(n) + ext
}

// Rotate moves the content of the current log into the next historic slot
// and truncates the current log. The current log is only truncated once the
// copy has been synced; if anything before that fails the current log keeps
// all of its content and the error is returned.
func (l *File) Rotate() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	dest, err := l.nextSlot()
	if err != nil {
		return "", err
	}

	if err := l.copyTo(dest); err != nil {
		// Keep appending where we left off
		if _, seekErr := l.f.Seek(0, io.SeekEnd); seekErr != nil {
			return "", errors.Join(err, fmt.Errorf("restore log offset: %w", seekErr))
		}
		return "", err
	}

	if err := l.f.Truncate(0); err != nil {
		return dest, fmt.Errorf("truncate log: %w", err)
	}
	if _, err := l.f.Seek(0, io.SeekStart); err != nil {
		return dest, fmt.Errorf("rewind log: %w", err)
	}

	return dest, nil
}

func (l *File) copyTo(dest string) error {
	if _, err := l.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind log: %w", err)
	}

	hist, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open historic log: %w", err)
	}

	if _, err := io.Copy(hist, l.f); err != nil {
		_ = hist.Close()
		return fmt.Errorf("copy to historic log: %w", err)
	}
	if err := hist.Sync(); err != nil {
		_ = hist.Close()
		return fmt.Errorf("sync historic log: %w", err)
	}
	if err := hist.Close(); err != nil {
		return fmt.Errorf("close historic log: %w", err)
	}

	return nil
}

// nextSlot returns the first unused historic slot. When every slot is in use
// the one written longest ago is reused.
func (l *File) nextSlot() (string, error) {
	if l.slots <= 0 {
		return "", ErrNoSlot
	}

	var (
		oldest     string
		oldestTime time.Time
	)
	for n := 1; n <= l.slots; n++ {
		candidate := l.HistoricPath(n)
		info, err := os.Stat(candidate)
		if errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("stat historic log: %w", err)
		}
		if oldest == "" || info.ModTime().Before(oldestTime) {
			oldest = candidate
			oldestTime = info.ModTime()
		}
	}

	return oldest, nil
}
