package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cointist/internal/fileutil"
)

var (
	// ErrUnavailable reports that the store location cannot be read at all.
	ErrUnavailable = errors.New("artifact store unavailable")
	// ErrInvalidName reports a name that is not a plain file name.
	ErrInvalidName = errors.New("invalid artifact name")
)

// Entry is one listed artifact.
type Entry struct {
	Name    string
	Parsed  Name
	Named   bool
	ModTime time.Time
	Size    int64
}

// Stamp returns the filename timestamp, falling back to the modification time
// for files that do not follow the naming scheme.
func (e Entry) Stamp() time.Time {
	if e.Named {
		return e.Parsed.Stamp
	}
	return e.ModTime
}

// Store is the minimal surface the pipeline needs from shared storage.
type Store interface {
	// List returns artifacts whose name starts with prefix, newest stamp first.
	List(ctx context.Context, prefix string) ([]Entry, error)
	Read(ctx context.Context, name string) ([]byte, error)
	// Write creates name with data. Existing artifacts are never replaced.
	Write(ctx context.Context, name string, data []byte) error
}

// Dir is a Store backed by a single directory.
type Dir struct {
	root string
}

// NewDir returns a directory store rooted at root. The directory is created
// lazily on first write.
func NewDir(root string) *Dir {
	return &Dir{root: strings.TrimSpace(root)}
}

// Root returns the backing directory.
func (d *Dir) Root() string {
	return d.root
}

// Path returns the absolute location of an artifact.
func (d *Dir) Path(name string) string {
	return filepath.Join(d.root, name)
}

func (d *Dir) List(ctx context.Context, prefix string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.root == "" {
		return nil, fmt.Errorf("%w: no directory configured", ErrUnavailable)
	}
	dirEntries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		name := de.Name()
		if !de.Type().IsRegular() || strings.HasPrefix(name, ".") {
			continue
		}
		if prefix != "" && !strings.HasPrefix(name, prefix) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		parsed, named := ParseName(name)
		entries = append(entries, Entry{
			Name:    name,
			Parsed:  parsed,
			Named:   named,
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}
	sortNewestFirst(entries)
	return entries, nil
}

func (d *Dir) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkName(name); err != nil {
		return nil, err
	}
	return os.ReadFile(d.Path(name))
}

func (d *Dir) Write(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkName(name); err != nil {
		return err
	}
	if d.root == "" {
		return fmt.Errorf("%w: no directory configured", ErrUnavailable)
	}
	return fileutil.CreateFileAtomic(d.Path(name), data, 0o644)
}

// Exists reports whether the named artifact is present.
func (d *Dir) Exists(name string) bool {
	if checkName(name) != nil {
		return false
	}
	_, err := os.Stat(d.Path(name))
	return err == nil
}

func checkName(name string) error {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func sortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		si, sj := entries[i].Stamp(), entries[j].Stamp()
		if !si.Equal(sj) {
			return si.After(sj)
		}
		return entries[i].Name > entries[j].Name
	})
}

// IsNotExist reports whether err means the artifact vanished or never existed.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
