package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/remsfal/remsfal-backend-sub003/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileGateway(t *testing.T) FileGateway {
	t.Helper()
	store, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	return NewFileGateway(store, time.Minute)
}

func upload(t *testing.T, g FileGateway, name, contentType, content string) *ObjectRef {
	t.Helper()
	ref, err := g.Upload(context.Background(), strings.NewReader(content), name, contentType, int64(len(content)))
	require.NoError(t, err)
	return ref
}

func TestUpload_RoundTrip(t *testing.T) {
	g := newTestFileGateway(t)
	ctx := context.Background()

	ref := upload(t, g, "photo.png", "image/png", "png bytes")
	assert.Equal(t, "photo.png", ref.Key)

	rc, err := g.Download(ctx, ref.Key)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "png bytes", string(data))
}

func TestUpload_RejectsEmptyFile(t *testing.T) {
	g := newTestFileGateway(t)
	ctx := context.Background()

	_, err := g.Upload(ctx, strings.NewReader(""), "empty.png", "image/png", 0)
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = g.Upload(ctx, nil, "empty.png", "image/png", 10)
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestUpload_RejectsBlankFileName(t *testing.T) {
	g := newTestFileGateway(t)

	_, err := g.Upload(context.Background(), strings.NewReader("x"), "   ", "image/png", 1)
	assert.ErrorIs(t, err, ErrMissingFileName)
}

func TestUpload_ContentTypeAllowList(t *testing.T) {
	g := newTestFileGateway(t)
	ctx := context.Background()

	_, err := g.Upload(ctx, strings.NewReader("x"), "malware.exe", "application/x-msdownload", 1)
	assert.ErrorIs(t, err, ErrUnsupportedContentType)

	_, err = g.Upload(ctx, strings.NewReader("x"), "page.html", "text/html", 1)
	assert.ErrorIs(t, err, ErrUnsupportedContentType)

	// Parameters and casing on the media type are tolerated.
	_, err = g.Upload(ctx, strings.NewReader("x"), "notes.txt", "Text/Plain; charset=utf-8", 1)
	assert.NoError(t, err)
}

func TestUpload_CollisionGetsNumberedSuffix(t *testing.T) {
	g := newTestFileGateway(t)

	first := upload(t, g, "report.pdf", "application/pdf", "one")
	second := upload(t, g, "report.pdf", "application/pdf", "two")
	third := upload(t, g, "report.pdf", "application/pdf", "three")

	assert.Equal(t, "report.pdf", first.Key)
	assert.Equal(t, "report(1).pdf", second.Key)
	assert.Equal(t, "report(2).pdf", third.Key)

	// Each object keeps its own content.
	rc, err := g.Download(context.Background(), "report(1).pdf")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
}

func TestUpload_StripsDirectoryFromFileName(t *testing.T) {
	g := newTestFileGateway(t)

	ref := upload(t, g, "../../etc/passwd.txt", "text/plain", "data")
	assert.Equal(t, "passwd.txt", ref.Key)
}

func TestDownload_NotFound(t *testing.T) {
	g := newTestFileGateway(t)

	_, err := g.Download(context.Background(), "missing.pdf")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestDelete_IsBestEffort(t *testing.T) {
	g := newTestFileGateway(t)
	ctx := context.Background()

	ref := upload(t, g, "temp.txt", "text/plain", "data")
	require.NoError(t, g.Delete(ctx, ref.Key))

	// Deleting an absent object still succeeds.
	require.NoError(t, g.Delete(ctx, ref.Key))

	_, err := g.Download(ctx, ref.Key)
	assert.ErrorIs(t, err, ErrFileNotFound)
}
