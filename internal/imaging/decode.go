// Package imaging decodes the base64 image payloads clients submit.
// Payloads arrive either as a data URL ("data:image/png;base64,....") or as
// bare base64; both are accepted.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"strings"

	_ "image/jpeg"
	_ "image/png"
)

var ErrEmptyPayload = errors.New("empty image payload")

// DecodeBase64 strips an optional data-URL prefix and base64-decodes the rest.
func DecodeBase64(data string) ([]byte, error) {
	if data == "" {
		return nil, ErrEmptyPayload
	}
	if idx := strings.IndexByte(data, ','); idx >= 0 && strings.HasPrefix(data, "data:") {
		data = data[idx+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data))
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image data: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrEmptyPayload
	}
	return raw, nil
}

// DecodeImage decodes a base64 payload into an image (PNG or JPEG).
func DecodeImage(data string) (image.Image, error) {
	raw, err := DecodeBase64(data)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("unsupported or corrupt image: %w", err)
	}
	return img, nil
}
