// Package eventlog reads and parses the facility's append-only event log.
package eventlog

import (
	"fmt"
	"os"
	"strings"
)

// Tailer incrementally reads new bytes appended to a single log file,
// tracking a byte offset across calls. It never re-advances the offset
// on a failed read, and resets to zero when the file shrinks (rotation
// or truncation).
type Tailer struct {
	path   string
	offset int64
}

// NewTailer returns a Tailer positioned at the start of path.
func NewTailer(path string) *Tailer {
	return &Tailer{path: path}
}

// Offset returns the tailer's current byte offset.
func (t *Tailer) Offset() int64 { return t.offset }

// SetOffset forces the tailer's offset. The daemon does not persist the
// offset across restarts; it calls ReadAll on startup instead.
func (t *Tailer) SetOffset(off int64) { t.offset = off }

// ReadAll reads the entire file from the start and leaves the offset at
// end-of-file. Used on daemon startup before the first Poll.
func (t *Tailer) ReadAll() ([]Entry, error) {
	t.offset = 0
	return t.read(t.sizeOrZero())
}

// Poll reads only bytes past the stored offset. If the file is smaller
// than the stored offset, it was rotated or truncated and the offset is
// reset to zero before reading from the start. If the file size equals
// the offset, Poll returns no entries. On open/read failure, Poll
// returns an empty result and leaves the offset unchanged.
func (t *Tailer) Poll() ([]Entry, error) {
	size := t.sizeOrZero()
	if size < t.offset {
		t.offset = 0
	}
	if size == t.offset {
		return nil, nil
	}
	return t.read(size)
}

func (t *Tailer) sizeOrZero() int64 {
	info, err := os.Stat(t.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// read reads the slice [offset, size) of the file, decodes it as UTF-8,
// splits on newlines, parses each line, and advances offset to size only
// on success.
func (t *Tailer) read(size int64) ([]Entry, error) {
	f, err := os.Open(t.path)
	if err != nil {
		return nil, ErrTail(t.path, err)
	}
	defer f.Close()

	if t.offset > 0 {
		if _, err := f.Seek(t.offset, 0); err != nil {
			return nil, ErrTail(t.path, err)
		}
	}

	buf := make([]byte, size-t.offset)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return nil, ErrTail(t.path, err)
	}
	buf = buf[:n]

	lines := strings.Split(string(buf), "\n")
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		entry, ok := ParseLine(line)
		if !ok {
			continue
		}
		entries = append(entries, entry)
	}

	t.offset = size
	return entries, nil
}

// ErrTail wraps a tailer failure with the file path for logging.
func ErrTail(path string, err error) error {
	return fmt.Errorf("tailing %s: %w", path, err)
}
