package qrcode

import (
	"errors"

	"esim-storefront/internal/domain/ports/adapter"

	qr "github.com/skip2/go-qrcode"
)

var _ adapter.QRRenderer = Renderer{}

// Renderer encodes LPA activation strings at medium error correction.
type Renderer struct{}

func (Renderer) PNG(content string, size int) ([]byte, error) {
	if content == "" {
		return nil, errors.New("qrcode: empty content")
	}
	if size <= 0 {
		size = 256
	}
	return qr.Encode(content, qr.Medium, size)
}
