package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/remsfal/remsfal-backend-sub003/pkg/log"
	"github.com/remsfal/remsfal-backend-sub003/pkg/storage"
)

var (
	ErrEmptyFile              = errors.New("uploaded file must not be empty")
	ErrMissingFileName        = errors.New("file name must not be blank")
	ErrUnsupportedContentType = errors.New("unsupported file content type")
	ErrFileNotFound           = errors.New("file not found")
)

// allowedContentTypes is the upload allow-list: images, PDF, plain text,
// Word formats, and JSON.
var allowedContentTypes = map[string]struct{}{
	"image/jpeg":       {},
	"image/png":        {},
	"image/gif":        {},
	"application/pdf":  {},
	"text/plain":       {},
	"application/json": {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
}

type fileGatewayImpl struct {
	storage storage.Storage
	urlTTL  time.Duration
}

// NewFileGateway creates a FileGateway on top of the configured blob store.
func NewFileGateway(st storage.Storage, urlTTL time.Duration) FileGateway {
	return &fileGatewayImpl{storage: st, urlTTL: urlTTL}
}

// Upload validates and stores the content, returning a stable object
// reference. A name collision within the bucket is resolved by appending
// "(n)" before the extension, probing increasing n until a free name is
// found. The probe is a sequential check-then-act; it assumes uploads are
// not adversarially concurrent for the identical name.
func (g *fileGatewayImpl) Upload(ctx context.Context, r io.Reader, fileName, contentType string, size int64) (*ObjectRef, error) {
	if r == nil || size == 0 {
		return nil, ErrEmptyFile
	}
	if strings.TrimSpace(fileName) == "" {
		return nil, ErrMissingFileName
	}
	if !isAllowedContentType(contentType) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}

	key, err := g.resolveCollision(ctx, filepath.Base(fileName))
	if err != nil {
		return nil, err
	}

	if err := g.storage.Write(ctx, key, r, size, contentType); err != nil {
		return nil, err
	}

	logger := log.Ctx(ctx)
	logger.Info().Str("key", key).Str("content_type", contentType).Msg("stored uploaded file")

	return &ObjectRef{Bucket: g.storage.Bucket(), Key: key}, nil
}

func (g *fileGatewayImpl) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := g.storage.Read(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	return rc, nil
}

// Delete removes the object best-effort; failures are logged, not surfaced.
func (g *fileGatewayImpl) Delete(ctx context.Context, key string) error {
	if err := g.storage.Delete(ctx, key); err != nil {
		logger := log.Ctx(ctx)
		logger.Warn().Err(err).Str("key", key).Msg("failed to delete stored file")
	}
	return nil
}

func (g *fileGatewayImpl) FileURL(ctx context.Context, key string) (string, error) {
	return g.storage.GetURL(ctx, key, g.urlTTL)
}

func (g *fileGatewayImpl) Bucket() string {
	return g.storage.Bucket()
}

func (g *fileGatewayImpl) resolveCollision(ctx context.Context, fileName string) (string, error) {
	exists, err := g.storage.Exists(ctx, fileName)
	if err != nil {
		return "", err
	}
	if !exists {
		return fileName, nil
	}

	ext := filepath.Ext(fileName)
	base := strings.TrimSuffix(fileName, ext)

	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s(%d)%s", base, n, ext)
		exists, err := g.storage.Exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
}

func isAllowedContentType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "" {
		return false
	}
	_, ok := allowedContentTypes[ct]
	return ok
}
