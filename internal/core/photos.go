package core

import (
	"breadstamp/internal/blob"
	"breadstamp/internal/imagecache"
	"breadstamp/pkg/domain"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

// Upload limits. MaxPhotoPixels keeps a decoded photo within the default
// image cache budget.
const (
	MaxPhotoBytes  = 20 << 20
	MaxPhotoPixels = imagecache.DefaultMaxCost / 4
)

var photoExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// PhotoKey derives the blob key for a photo. Identical bytes map to the same
// key so re-uploading a photo is a no-op.
func PhotoKey(entity domain.EntityType, id string, data []byte, ext string) string {
	prefix := "breads"
	if entity == domain.EntityBakery {
		prefix = "bakeries"
	}
	return fmt.Sprintf("%s/%s/%016x%s", prefix, id, xxhash.Sum64(data), ext)
}

func detectImage(data []byte, contentType string) (string, string, error) {
	ct := strings.TrimSpace(contentType)
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(data)
	}
	if media, _, err := mime.ParseMediaType(ct); err == nil {
		ct = media
	}
	ext, ok := photoExtensions[ct]
	if !ok {
		return "", "", invalid("unsupported photo type %q", ct)
	}
	return ct, ext, nil
}

// inspectImage checks the declared type and the image header. The returned
// content type is the one the header decodes as.
func inspectImage(data []byte, contentType string) (string, string, error) {
	if _, _, err := detectImage(data, contentType); err != nil {
		return "", "", err
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", "", invalid("photo cannot be decoded: %v", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", "", invalid("photo has no pixels")
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPhotoPixels {
		return "", "", invalid("photo is %dx%d, above the %d pixel limit", cfg.Width, cfg.Height, MaxPhotoPixels)
	}
	return detectImage(data, "image/"+format)
}

func (s *Service) storePhoto(ctx context.Context, entity domain.EntityType, id string, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	if len(data) > MaxPhotoBytes {
		return "", invalid("photo exceeds %d bytes", MaxPhotoBytes)
	}
	ct, ext, err := inspectImage(data, contentType)
	if err != nil {
		return "", err
	}
	key := PhotoKey(entity, id, data, ext)
	// a valid header can still front truncated pixel data
	if _, err := s.images.Decode(key, data); err != nil {
		return "", invalid("photo cannot be decoded: %v", err)
	}
	_, err = s.blobs.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{
		ContentType: ct,
		Metadata:    map[string]string{"entity": string(entity), "owner": id},
	})
	if err != nil && !errors.Is(err, blob.ErrExists) {
		s.images.Invalidate(key)
		return "", fmt.Errorf("store photo: %w", err)
	}
	return key, nil
}

// stagedPhoto is a photo written to blob storage ahead of the commit that
// references it.
type stagedPhoto struct {
	set      bool
	key      string // empty when the photo is removed
	previous string
}

func (s *Service) stagePhoto(ctx context.Context, entity domain.EntityType, id, current string, upload *PhotoUpload) (stagedPhoto, error) {
	if upload == nil {
		return stagedPhoto{}, nil
	}
	key, err := s.storePhoto(ctx, entity, id, upload.Data, upload.ContentType)
	if err != nil {
		return stagedPhoto{}, err
	}
	return stagedPhoto{set: true, key: key, previous: current}, nil
}

// settlePhoto drops whichever blob the commit outcome left unreferenced.
func (s *Service) settlePhoto(ctx context.Context, p stagedPhoto, commitErr error) {
	if !p.set || p.key == p.previous {
		return
	}
	if commitErr != nil {
		s.discardPhotos(ctx, p.key)
		return
	}
	s.discardPhotos(ctx, p.previous)
}

// discardPhotos deletes blobs and their cached decodes. Failures are logged
// since the owning records are already gone.
func (s *Service) discardPhotos(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		s.images.Invalidate(key)
		if _, err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.Warn("photo cleanup failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// SetBakeryPhoto replaces the bakery photo. Empty data removes it.
func (s *Service) SetBakeryPhoto(ctx context.Context, id string, data []byte, contentType string) (bakery domain.Bakery, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "set_bakery_photo", start, err) }()
	bakery, _, err = s.updateBakery(ctx, id, BakeryUpdate{Photo: &PhotoUpload{Data: data, ContentType: contentType}})
	return bakery, err
}

// SetBreadPhoto replaces the bread photo. Empty data removes it.
func (s *Service) SetBreadPhoto(ctx context.Context, id string, data []byte, contentType string) (bread domain.Bread, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "set_bread_photo", start, err) }()
	bread, _, err = s.updateBread(ctx, id, BreadUpdate{Photo: &PhotoUpload{Data: data, ContentType: contentType}})
	return bread, err
}

func (s *Service) photoKey(entity domain.EntityType, id string) (string, error) {
	var key string
	switch entity {
	case domain.EntityBakery:
		b, ok := s.store.GetBakery(id)
		if !ok {
			return "", ErrNotFound{Entity: entity, ID: id}
		}
		key = b.PhotoKey
	case domain.EntityBread:
		b, ok := s.store.GetBread(id)
		if !ok {
			return "", ErrNotFound{Entity: entity, ID: id}
		}
		key = b.PhotoKey
	default:
		return "", invalid("entity %q has no photos", entity)
	}
	if key == "" {
		return "", ErrNotFound{Entity: EntityPhoto, ID: id}
	}
	return key, nil
}

func (s *Service) readBlob(ctx context.Context, key string) (blob.Info, []byte, error) {
	info, rc, err := s.blobs.Get(ctx, key)
	if errors.Is(err, blob.ErrNotFound) {
		return blob.Info{}, nil, ErrNotFound{Entity: EntityPhoto, ID: key}
	}
	if err != nil {
		return blob.Info{}, nil, fmt.Errorf("read photo: %w", err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(io.LimitReader(rc, MaxPhotoBytes+1))
	if err != nil {
		return blob.Info{}, nil, fmt.Errorf("read photo: %w", err)
	}
	return info, data, nil
}

// Photo returns the stored photo bytes of a bakery or bread.
func (s *Service) Photo(ctx context.Context, entity domain.EntityType, id string) (blob.Info, []byte, error) {
	key, err := s.photoKey(entity, id)
	if err != nil {
		return blob.Info{}, nil, err
	}
	return s.readBlob(ctx, key)
}

// PhotoURL returns a pre-signed URL for the photo when the blob driver
// supports it; blob.ErrUnsupported otherwise.
func (s *Service) PhotoURL(ctx context.Context, entity domain.EntityType, id string, expiry time.Duration) (string, error) {
	key, err := s.photoKey(entity, id)
	if err != nil {
		return "", err
	}
	return s.blobs.PresignURL(ctx, key, blob.SignedURLOptions{Expiry: expiry})
}

// Thumbnail returns a JPEG whose longest edge is at most size pixels.
// Decoded photos are served from the image cache when present.
func (s *Service) Thumbnail(ctx context.Context, entity domain.EntityType, id string, size int) (out []byte, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "thumbnail", start, err) }()
	key, err := s.photoKey(entity, id)
	if err != nil {
		return nil, err
	}
	if s.images.Contains(key) {
		if out, err := s.images.Thumbnail(key, nil, size); err == nil {
			return out, nil
		}
	}
	_, data, err := s.readBlob(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.images.Thumbnail(key, data, size)
}
