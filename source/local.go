package source

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hupe1980/kiln/internal/mmap"
)

// Local reads assets from a directory tree. Files are memory-mapped and
// copied out, so the caller owns the returned bytes.
type Local struct {
	root string
}

// NewLocal creates a source rooted at dir.
func NewLocal(dir string) *Local {
	return &Local{root: dir}
}

// Root returns the root directory.
func (s *Local) Root() string {
	return s.root
}

func (s *Local) path(name string) (string, error) {
	rel := filepath.FromSlash(name)
	if name == "" || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.root, rel), nil
}

// Read implements Source.
func (s *Local) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := s.path(name)
	if err != nil {
		return nil, err
	}

	m, err := mmap.Open(p)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	_ = m.Advise(mmap.AdviceSequential)

	out := make([]byte, m.Size())
	copy(out, m.Bytes())
	return out, nil
}

// List implements Lister. Names are slash-separated and sorted.
func (s *Local) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}
