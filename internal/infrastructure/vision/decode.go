//go:build !gocv
// +build !gocv

package vision

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/tiff"

	"culture-sentinel/internal/domain/entity"
)

// Decode декодирует tif/png/jpeg, переводит в серый и масштабирует до size×size.
func Decode(data []byte, size int) (*image.Gray, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrImageDecode, err)
	}
	return Prepare(img, size)
}
