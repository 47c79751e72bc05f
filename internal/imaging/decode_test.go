package imaging

import (
	"testing"
)

// onePixelPNG is a 1x1 PNG, the smallest decodable image payload.
const onePixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8z8BQDwAEhQGAhKmMIQAAAABJRU5ErkJggg=="

func TestDecodeBase64StripsDataURL(t *testing.T) {
	withPrefix, err := DecodeBase64("data:image/png;base64," + onePixelPNG)
	if err != nil {
		t.Fatalf("data URL decode failed: %v", err)
	}
	bare, err := DecodeBase64(onePixelPNG)
	if err != nil {
		t.Fatalf("bare decode failed: %v", err)
	}
	if len(withPrefix) != len(bare) {
		t.Fatal("prefix handling changed the payload")
	}
}

func TestDecodeBase64Errors(t *testing.T) {
	if _, err := DecodeBase64(""); err == nil {
		t.Fatal("expected error for empty payload")
	}
	if _, err := DecodeBase64("!!!not-base64!!!"); err == nil {
		t.Fatal("expected error for invalid base64")
	}
}

func TestDecodeImage(t *testing.T) {
	img, err := DecodeImage("data:image/png;base64," + onePixelPNG)
	if err != nil {
		t.Fatalf("DecodeImage failed: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 1 || b.Dy() != 1 {
		t.Fatalf("expected 1x1 image, got %dx%d", b.Dx(), b.Dy())
	}

	if _, err := DecodeImage("aGVsbG8gd29ybGQ="); err == nil {
		t.Fatal("expected error for non-image bytes")
	}
}
