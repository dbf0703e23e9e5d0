package qrtoken

import (
	qrcode "github.com/skip2/go-qrcode"
)

// DefaultImageSize is the pixel edge length of rendered QR barcodes.
const DefaultImageSize = 256

// Image renders a credential string as a PNG barcode. No business logic;
// any string produced by Encode round-trips through a standard scanner.
func Image(token string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultImageSize
	}
	return qrcode.Encode(token, qrcode.Medium, size)
}
