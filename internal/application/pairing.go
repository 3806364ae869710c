package application

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const pairingQRSize = 256

// RenderPairingQR encodes a pairing code as a PNG data URL suitable for an <img> tag
func RenderPairingQR(code string) (string, error) {
	png, err := qrcode.Encode(code, qrcode.Medium, pairingQRSize)
	if err != nil {
		return "", fmt.Errorf("failed to render pairing code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
