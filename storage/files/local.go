// Package filestore saves uploaded files on the local disk.
package filestore

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

const maxBaseLen = 64

var (
	AllowedTypes = []string{"pdf", "docx", "ppt", "pptx", "txt", "xlsx", "zip", "jpg", "png", "mp4"}

	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
)

type localStore struct {
	root    string
	maxSize int64
}

var _ core.FileStore = (*localStore)(nil)

func NewLocalStore(conf core.StorageConfig) (core.FileStore, error) {
	root, err := filepath.Abs(conf.UploadDir)
	if err != nil {
		return nil, errors.Wrap(err, "resolving upload dir")
	}
	if err = os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating upload dir")
	}
	return &localStore{root: root, maxSize: conf.MaxUploadSize}, nil
}

func allowed(fileType string) bool {
	for _, t := range AllowedTypes {
		if t == fileType {
			return true
		}
	}
	return false
}

// storedName returns a unique, filesystem-safe name keeping a readable part of the original one.
func storedName(filename, fileType string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	base = strings.Trim(unsafeChars.ReplaceAllString(base, "_"), "_")
	if len(base) > maxBaseLen {
		base = base[:maxBaseLen]
	}
	if base == "" {
		return uuid.NewString() + "." + fileType
	}
	return uuid.NewString() + "_" + base + "." + fileType
}

func (s *localStore) Save(upload core.Upload) (core.StoredFile, error) {
	fileType := strings.ToLower(strings.TrimPrefix(filepath.Ext(upload.Filename), "."))
	if !allowed(fileType) {
		return core.StoredFile{}, core.ErrFileTypeNotAllowed
	}

	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return core.StoredFile{}, errors.Wrap(err, "creating temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }() // no-op once renamed

	n, err := io.Copy(tmp, io.LimitReader(upload.Content, s.maxSize+1))
	if cErr := tmp.Close(); err == nil {
		err = cErr
	}
	if err != nil {
		return core.StoredFile{}, errors.Wrap(err, "writing upload")
	}
	if n > s.maxSize {
		return core.StoredFile{}, core.ErrFileTooLarge
	}

	name := storedName(upload.Filename, fileType)
	if err = os.Rename(tmp.Name(), filepath.Join(s.root, name)); err != nil {
		return core.StoredFile{}, errors.Wrap(err, "moving upload")
	}
	return core.StoredFile{Path: name, Type: fileType}, nil
}

// Remove deletes a stored file. Missing files are ignored.
func (s *localStore) Remove(path string) error {
	full := filepath.Join(s.root, filepath.Clean("/"+path))
	if full == s.root {
		return errors.Errorf("invalid file path %q", path)
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing file")
	}
	return nil
}
