package filestore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
)

func newStore(t *testing.T, maxSize int64) (core.FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewLocalStore(core.StorageConfig{UploadDir: dir, MaxUploadSize: maxSize})
	require.NoError(t, err)
	return store, dir
}

func TestLocalStore_Save(t *testing.T) {
	store, dir := newStore(t, 16)

	tests := []struct {
		name     string
		filename string
		content  string
		wantType string
		wantErr  error
	}{
		{name: "pdf", filename: "Lesson 1.pdf", content: "%PDF-1.4", wantType: "pdf"},
		{name: "extension is case insensitive", filename: "photo.JPG", content: "jpg", wantType: "jpg"},
		{name: "path is stripped", filename: "../../etc/notes.txt", content: "notes", wantType: "txt"},
		{name: "type not allowed", filename: "script.sh", content: "rm -rf /", wantErr: core.ErrFileTypeNotAllowed},
		{name: "no extension", filename: "README", content: "readme", wantErr: core.ErrFileTypeNotAllowed},
		{name: "too large", filename: "big.txt", content: strings.Repeat("x", 17), wantErr: core.ErrFileTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stored, err := store.Save(core.Upload{Filename: tt.filename, Content: strings.NewReader(tt.content)})
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, stored.Type)
			assert.Equal(t, filepath.Base(stored.Path), stored.Path)

			data, err := os.ReadFile(filepath.Join(dir, stored.Path))
			require.NoError(t, err)
			assert.Equal(t, tt.content, string(data))
		})
	}

	// only the successfully saved files are left
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestLocalStore_Remove(t *testing.T) {
	store, dir := newStore(t, 1024)

	stored, err := store.Save(core.Upload{Filename: "a.txt", Content: strings.NewReader("a")})
	require.NoError(t, err)

	require.NoError(t, store.Remove(stored.Path))
	_, err = os.Stat(filepath.Join(dir, stored.Path))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, store.Remove(stored.Path), "missing files are ignored")
	assert.Error(t, store.Remove(""))
}

func TestStoredName(t *testing.T) {
	name := storedName("My Notes (final)!.docx", "docx")
	assert.True(t, strings.HasSuffix(name, "_My_Notes_final.docx"), name)

	name = storedName("!!!.pdf", "pdf")
	assert.Len(t, name, 36+len(".pdf"))
}
