// Package upload persists message attachments on local disk. The storage
// medium is ephemeral on serverless targets; attachments do not survive an
// instance replacement.
package upload

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/teris-io/shortid"
)

type Store struct {
	dir string
	// generateId is swappable in tests
	generateId func() (string, error)
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	return &Store{
		dir:        dir,
		generateId: shortid.Generate,
	}, nil
}

// Save writes the attachment under a generated name and returns the relative
// path to embed in a message. The shortid component rules out collisions
// between uploads of the same file name in the same millisecond.
func (s *Store) Save(r io.Reader, originalName string) (string, error) {
	sid, err := s.generateId()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}

	name := fmt.Sprintf("%d-%s-%s", time.Now().UnixMilli(), sid, sanitizeName(originalName))
	dst, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("write file: %w", err)
	}

	return filepath.ToSlash(filepath.Join("uploads", name)), nil
}

func (s *Store) Dir() string {
	return s.dir
}

// sanitizeName strips any path component and characters that are unsafe in a
// URL path segment.
func sanitizeName(name string) string {
	name = filepath.Base(name)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
