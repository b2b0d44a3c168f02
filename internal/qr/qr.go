// Package qr renders redeem URLs as QR code images.
package qr

import (
	"encoding/base64"

	qrcode "github.com/skip2/go-qrcode"
)

// Renderer encodes a URL as an image. Rendering failures are best-effort for
// callers: retrieval still succeeds without the image.
type Renderer interface {
	RenderDataURL(url string) (string, error)
}

// PNGRenderer renders a PNG QR code as a data URL
type PNGRenderer struct {
	size int
}

func NewPNGRenderer() *PNGRenderer {
	return &PNGRenderer{size: 256}
}

func (r *PNGRenderer) RenderDataURL(url string) (string, error) {
	png, err := qrcode.Encode(url, qrcode.Medium, r.size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
