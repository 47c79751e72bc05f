// Package qrdecode extracts QR code contents from images.
package qrdecode

import (
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/multi/qrcode"
)

// Decode returns the raw text of every QR code found in the image, in the
// order the detector reports them. An image with no codes returns an empty
// slice and no error; callers treat that as a distinct outcome.
func Decode(img image.Image) ([]string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, err
	}

	reader := qrcode.NewQRCodeMultiReader()
	results, err := reader.DecodeMultipleWithoutHint(bmp)
	if err != nil {
		// The reader reports "not found" as an error; no codes is not a failure.
		if _, ok := err.(gozxing.NotFoundException); ok {
			return nil, nil
		}
		return nil, err
	}

	texts := make([]string, 0, len(results))
	for _, r := range results {
		texts = append(texts, r.GetText())
	}
	return texts, nil
}
