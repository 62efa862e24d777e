// Package qrcode renders payment intents as PNG QR codes.
package qrcode

import (
	"encoding/base64"
	"fmt"

	goqrcode "github.com/skip2/go-qrcode"
)

const defaultSize = 300

// Encoder renders square PNG QR codes of a fixed pixel size.
type Encoder struct {
	size  int
	level goqrcode.RecoveryLevel
}

// NewEncoder returns an Encoder producing size x size images.
func NewEncoder(size int) *Encoder {
	if size <= 0 {
		size = defaultSize
	}
	return &Encoder{size: size, level: goqrcode.Medium}
}

// PNG encodes content into PNG bytes.
func (e *Encoder) PNG(content string) ([]byte, error) {
	png, err := goqrcode.Encode(content, e.level, e.size)
	if err != nil {
		return nil, fmt.Errorf("qrcode: encode: %w", err)
	}
	return png, nil
}

// Base64PNG encodes content into a base64 (standard alphabet) PNG.
func (e *Encoder) Base64PNG(content string) (string, error) {
	png, err := e.PNG(content)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
