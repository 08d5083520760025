package storage

import (
	"encoding/base64"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	store, err := NewLocalStorage(t.TempDir())
	assert.NoError(t, err)
	return store
}

func TestStoreSignatureImage_PNGDataURL(t *testing.T) {
	store := newTestStorage(t)
	payload := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload)

	relPath, err := store.StoreSignatureImage(dataURL)
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(relPath, "signatures/"))
	assert.True(t, strings.HasSuffix(relPath, ".png"))
	assert.True(t, store.Exists(relPath))

	f, err := store.Download(relPath)
	assert.NoError(t, err)
	defer f.Close()
	stored, err := io.ReadAll(f)
	assert.NoError(t, err)
	assert.Equal(t, payload, stored)
}

func TestStoreSignatureImage_JPEGDataURL(t *testing.T) {
	store := newTestStorage(t)
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte{0xFF, 0xD8, 0xFF})

	relPath, err := store.StoreSignatureImage(dataURL)
	assert.NoError(t, err)
	assert.True(t, strings.HasSuffix(relPath, ".jpg"))
}

func TestStoreSignatureImage_PlainBase64DefaultsToPNG(t *testing.T) {
	store := newTestStorage(t)
	relPath, err := store.StoreSignatureImage(base64.StdEncoding.EncodeToString([]byte("firma")))
	assert.NoError(t, err)
	assert.True(t, strings.HasSuffix(relPath, ".png"))
}

func TestStoreSignatureImage_Invalid(t *testing.T) {
	store := newTestStorage(t)

	_, err := store.StoreSignatureImage("data:image/gif;base64,R0lGOD==")
	assert.Error(t, err, "unsupported image type")

	_, err = store.StoreSignatureImage("data:image/png;base64")
	assert.Error(t, err, "malformed data URL")

	_, err = store.StoreSignatureImage("data:image/png;base64,%%%not-base64%%%")
	assert.Error(t, err)

	_, err = store.StoreSignatureImage("data:image/png;base64,")
	assert.Error(t, err, "empty payload")
}

func TestStoreSignatureImage_AppendOnly(t *testing.T) {
	store := newTestStorage(t)
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("firma"))

	first, err := store.StoreSignatureImage(dataURL)
	assert.NoError(t, err)
	second, err := store.StoreSignatureImage(dataURL)
	assert.NoError(t, err)

	assert.NotEqual(t, first, second, "each capture gets its own asset")
	assert.True(t, store.Exists(first))
	assert.True(t, store.Exists(second))
}
