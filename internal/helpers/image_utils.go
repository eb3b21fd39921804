package helpers

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"
)

// JPEG quality settings
const (
	HighQuality   = 95
	MediumQuality = 75
	LowQuality    = 50
)

var (
	imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}
	videoExts = map[string]bool{".mp4": true, ".avi": true, ".mov": true}
)

// IsImageFile reports whether name has an accepted still-image extension
func IsImageFile(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}

// IsVideoFile reports whether name has an accepted video extension
func IsVideoFile(name string) bool {
	return videoExts[strings.ToLower(filepath.Ext(name))]
}

// isJPEGData checks if the byte slice contains JPEG data by checking magic bytes
func isJPEGData(data []byte) bool {
	return len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8
}

// DecodeImage decodes an encoded image (JPEG, PNG) into a BGR Mat.
// The caller owns the returned Mat.
func DecodeImage(data []byte) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.NewMat(), errors.New("empty image data")
	}
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return mat, fmt.Errorf("failed to decode image: %w", err)
	}
	if mat.Empty() {
		return mat, errors.New("decoded image is empty")
	}
	return mat, nil
}

// EncodeJPEG encodes a BGR Mat as JPEG at the given quality
func EncodeJPEG(mat gocv.Mat, quality int) ([]byte, error) {
	if mat.Empty() {
		return nil, errors.New("cannot encode empty frame")
	}
	if quality <= 0 || quality > 100 {
		quality = HighQuality
	}
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	defer buf.Close()

	out := buf.GetBytes()
	if !isJPEGData(out) {
		return nil, errors.New("encoder produced non-JPEG output")
	}
	return out, nil
}
