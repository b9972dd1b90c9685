package document

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"

	"github.com/rotisserie/eris"

	"financial_extractor/pkg/models"
)

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Crop cuts box out of the page raster and returns it as PNG. The box is
// clamped to the page; a box that falls entirely outside the page is an error.
func Crop(page *PageImage, box models.BoundingBox) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(page.Data))
	if err != nil {
		return nil, eris.Wrapf(err, "document: decode page %d", page.Page)
	}

	rect := image.Rect(box.X, box.Y, box.X+box.Width, box.Y+box.Height).Intersect(img.Bounds())
	if rect.Empty() {
		return nil, eris.Errorf("document: box %+v outside page %d", box, page.Page)
	}

	si, ok := img.(subImager)
	if !ok {
		return nil, eris.Errorf("document: page %d image cannot be cropped", page.Page)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, si.SubImage(rect)); err != nil {
		return nil, eris.Wrap(err, "document: encode crop")
	}
	return buf.Bytes(), nil
}

// DataURL encodes a PNG payload as a data URL.
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
