// Package attachment stores files sent along with messages.
package attachment

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/Tyrowin/pairchat/internal/errs"
)

const sniffLen = 3072

// ErrTooLarge is returned when an upload exceeds the configured size.
var ErrTooLarge = errors.New("attachment too large")

// DefaultAllowed lists the content types accepted when none are configured.
var DefaultAllowed = []string{
	"image/png", "image/jpeg", "image/gif", "image/webp",
	"application/pdf", "text/plain",
}

// Store keeps attachments as flat files named {uuid}{ext} under one directory.
type Store struct {
	dir     string
	maxSize int64
	allowed []string
}

// New creates dir if needed.
func New(dir string, maxSize int64, allowed ...string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if len(allowed) == 0 {
		allowed = DefaultAllowed
	}
	return &Store{dir: dir, maxSize: maxSize, allowed: allowed}, nil
}

// Dir returns the directory files are written to.
func (s *Store) Dir() string { return s.dir }

// Save sniffs the content type, checks it against the allow-list and writes the file.
// It returns the generated name, which is what messages reference.
func (s *Store) Save(r io.Reader) (string, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read attachment: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return "", fmt.Errorf("%w: empty file", errs.ErrUnsupportedType)
	}

	mt := mimetype.Detect(head)
	if !mimetype.EqualsAny(mt.String(), s.allowed...) {
		return "", fmt.Errorf("%w: %s", errs.ErrUnsupportedType, mt.String())
	}

	name := uuid.NewString() + mt.Extension()
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create attachment: %w", err)
	}

	body := io.MultiReader(bytes.NewReader(head), r)
	if s.maxSize > 0 {
		body = io.LimitReader(body, s.maxSize+1)
	}
	written, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.maxSize > 0 && written > s.maxSize {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(filepath.Join(s.dir, name))
		return "", err
	}
	return name, nil
}

// Path resolves a stored name to its location on disk.
func (s *Store) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", errs.ErrNotFound
	}
	return filepath.Join(s.dir, name), nil
}

// Remove deletes a stored file. Missing files are not an error.
func (s *Store) Remove(name string) error {
	p, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
