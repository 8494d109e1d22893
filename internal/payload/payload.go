// Package payload turns the base64 image strings sent by clients into images.
package payload

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
)

// MaxPixels bounds the declared width*height of an image accepted for
// decoding. The decoder allocates the whole bitmap up front.
const MaxPixels = 40_000_000

var (
	ErrEmpty    = errors.New("empty image payload")
	ErrTooLarge = errors.New("image dimensions too large")
)

// StripDataURI removes a "data:<mime>;base64," prefix when present.
func StripDataURI(s string) string {
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if i := strings.IndexByte(s, ','); i >= 0 {
		return s[i+1:]
	}
	return s
}

// RepairPadding appends '=' until the length is a multiple of 4.
func RepairPadding(s string) string {
	if rem := len(s) % 4; rem != 0 {
		return s + strings.Repeat("=", 4-rem)
	}
	return s
}

// DecodeBase64 decodes a client image string, tolerating a data URI prefix,
// missing padding and the URL-safe alphabet.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(StripDataURI(strings.TrimSpace(s)))
	if s == "" {
		return nil, ErrEmpty
	}
	s = RepairPadding(s)

	data, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}
	if urlData, urlErr := base64.URLEncoding.DecodeString(s); urlErr == nil {
		return urlData, nil
	}
	return nil, fmt.Errorf("invalid base64: %w", err)
}

// DecodeImage decodes a client image string into an image and its format name.
func DecodeImage(s string) (image.Image, string, error) {
	data, err := DecodeBase64(s)
	if err != nil {
		return nil, "", err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, "", fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}
