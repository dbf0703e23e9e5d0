package pass

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/sangam-association/backend/internal/models"
)

// PhotoSize is the square edge, in pixels, passes crop profile photos to.
// It matches the client-side preview crop so printed and on-screen passes
// look the same.
const PhotoSize = 300

// ObjectStore resolves stored media keys into bytes (S3 in production).
type ObjectStore interface {
	Download(ctx context.Context, bucket, key string) ([]byte, error)
}

// fetchPhoto resolves and downloads the member's profile photo. A missing
// reference or a failed fetch returns nil bytes and no error; rendering
// degrades instead of aborting.
func (r *Renderer) fetchPhoto(ctx context.Context, member *models.Member, baseURL string) []byte {
	if member.PhotoKey == nil || *member.PhotoKey == "" {
		return nil
	}
	ref := *member.PhotoKey

	var raw []byte
	var err error
	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		raw, err = r.fetchURL(ctx, ref)
	case r.store != nil:
		raw, err = r.store.Download(ctx, r.mediaBucket, ref)
	default:
		raw, err = r.fetchURL(ctx, strings.TrimRight(baseURL, "/")+"/"+strings.TrimLeft(ref, "/"))
	}
	if err != nil {
		r.logger.Warn("profile photo unavailable, rendering without it",
			zap.Error(err), zap.String("ref", ref))
		return nil
	}
	return raw
}

func (r *Renderer) fetchURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// cropSquare center-crops to a square and resizes to PhotoSize, returning
// PNG bytes. The crop algorithm (center square, then resize) mirrors the
// client preview.
func cropSquare(raw []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode photo: %w", err)
	}
	b := img.Bounds()
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	cropped := imaging.CropCenter(img, side, side)
	resized := imaging.Resize(cropped, PhotoSize, PhotoSize, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode photo: %w", err)
	}
	return buf.Bytes(), nil
}
