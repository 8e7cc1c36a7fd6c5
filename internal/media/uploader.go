package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	coverPrefix = "covers/"
	jpegQuality = 85
)

var (
	// ErrInvalidImage is returned when an upload cannot be decoded as an image.
	ErrInvalidImage = errors.New("invalid image")
	// ErrTooLarge is returned when an upload exceeds the size limit.
	ErrTooLarge = errors.New("image too large")
)

// Uploader normalises cover images to JPEG and stores them.
type Uploader struct {
	storage  Storage
	maxWidth int
	maxBytes int64
	log      *zerolog.Logger
}

// NewUploader creates an uploader. Images wider than maxWidth are scaled down; 0 keeps the original size.
func NewUploader(storage Storage, maxWidth int, maxBytes int64, logger *zerolog.Logger) *Uploader {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Uploader{storage: storage, maxWidth: maxWidth, maxBytes: maxBytes, log: logger}
}

// SaveCover decodes r, resizes it and stores it. It returns the public URL.
func (u *Uploader) SaveCover(ctx context.Context, r io.Reader) (string, error) {
	if u.maxBytes > 0 {
		r = io.LimitReader(r, u.maxBytes+1)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if u.maxBytes > 0 && int64(len(raw)) > u.maxBytes {
		return "", ErrTooLarge
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	if u.maxWidth > 0 && img.Bounds().Dx() > u.maxWidth {
		img = imaging.Resize(img, u.maxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return "", fmt.Errorf("encode cover: %w", err)
	}

	key := coverPrefix + uuid.NewString() + ".jpg"
	if err := u.storage.Write(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), "image/jpeg"); err != nil {
		return "", err
	}
	u.log.Debug().Str("key", key).Int("bytes", buf.Len()).Msg("stored cover image")
	return u.storage.URL(key), nil
}

// RemoveCover deletes a cover previously returned by SaveCover. Foreign URLs are ignored.
func (u *Uploader) RemoveCover(ctx context.Context, url string) {
	if url == "" {
		return
	}
	key, ok := u.storage.Key(url)
	if !ok {
		return
	}
	if err := u.storage.Delete(ctx, key); err != nil {
		u.log.Warn().Err(err).Str("key", key).Msg("failed to delete cover image")
	}
}
