package imaging

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/HugoSmits86/nativewebp"
)

// EncodeWebP writes img as lossless WebP.
func EncodeWebP(w io.Writer, img image.Image) error {
	if err := nativewebp.Encode(w, img, nil); err != nil {
		return fmt.Errorf("imaging: webp encode: %w", err)
	}
	return nil
}

// WebPBytes encodes img to an in-memory WebP.
func WebPBytes(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeWebP(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveWebP writes img to path, creating parent directories.
func SaveWebP(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("imaging: mkdir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("imaging: create %s: %w", path, err)
	}
	defer f.Close()
	return EncodeWebP(f, img)
}
