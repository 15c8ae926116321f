package qrcode

import (
	"encoding/base64"
	"fmt"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"
)

const defaultSize = 256

// Generate renders content as a PNG QR code of size x size pixels.
func Generate(content string, size int) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("qr content is empty")
	}
	if size <= 0 {
		size = defaultSize
	}
	png, err := skipqrcode.Encode(content, skipqrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

// GenerateDataURI renders content as a QR code and returns it as a
// data:image/png;base64 URI, ready for an <img src> attribute.
func GenerateDataURI(content string, size int) (string, error) {
	png, err := Generate(content, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
