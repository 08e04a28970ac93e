//go:build gocv
// +build gocv

package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"culture-sentinel/internal/domain/entity"
)

// Decode декодирует изображение через OpenCV сразу в оттенки серого.
func Decode(data []byte, size int) (*image.Gray, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadGrayScale)
	if err != nil || mat.Empty() {
		if err == nil {
			mat.Close()
		}
		return nil, fmt.Errorf("%w: opencv could not decode %d bytes", entity.ErrImageDecode, len(data))
	}
	defer mat.Close()

	if mat.Cols() != size || mat.Rows() != size {
		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(mat, &resized, image.Pt(size, size), 0, 0, gocv.InterpolationCubic)
		return matToGray(resized), nil
	}
	return matToGray(mat), nil
}

func matToGray(mat gocv.Mat) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, mat.Cols(), mat.Rows()))
	for r := 0; r < mat.Rows(); r++ {
		for c := 0; c < mat.Cols(); c++ {
			g.Pix[r*g.Stride+c] = mat.GetUCharAt(r, c)
		}
	}
	return g
}

// planeToMat копирует плоскость в 8-битную матрицу OpenCV.
func planeToMat(p plane) (gocv.Mat, error) {
	return gocv.NewMatFromBytes(p.h, p.w, gocv.MatTypeCV8U, p.pix)
}
