package core

import (
	"io"

	"github.com/pkg/errors"
)

var (
	ErrFileTypeNotAllowed = errors.New("file type not allowed")
	ErrFileTooLarge       = errors.New("file too large")
)

type (
	// Upload is a file submitted by a user.
	Upload struct {
		Filename string
		Content  io.Reader
	}

	// StoredFile locates a saved Upload.
	StoredFile struct {
		Path string // relative to the store root
		Type string // lowercased extension, without the dot
	}

	// FileStore saves uploads under unique names.
	FileStore interface {
		// Save stores up to the configured maximum size of upload, rejecting extensions outside the allowlist.
		Save(upload Upload) (StoredFile, error)
		Remove(path string) error
	}
)
