package solutions

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var (
	ViolationColor = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	CompliantColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}

	plateColor  = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	plateBorder = color.RGBA{R: 40, G: 40, B: 40, A: 255}
)

const (
	bannerMargin    = 15
	bannerPadding   = 8
	bannerFontScale = 0.7
	bannerThickness = 2
)

// BannerText is the frame-level summary line for a violation count
func BannerText(violations int) (string, color.RGBA) {
	if violations > 0 {
		return fmt.Sprintf("NO HELMET: %d", violations), ViolationColor
	}
	return "Helmet OK", CompliantColor
}

// DrawHelmetBanner writes the compliance summary on a dark plate in the
// bottom-left corner of mat
func DrawHelmetBanner(mat *gocv.Mat, violations int) {
	if mat == nil || mat.Empty() {
		return
	}

	text, textColor := BannerText(violations)
	size := gocv.GetTextSize(text, gocv.FontHersheySimplex, bannerFontScale, bannerThickness)

	origin := image.Pt(bannerMargin, mat.Rows()-bannerMargin)
	plate := image.Rect(
		origin.X-bannerPadding, origin.Y-size.Y-bannerPadding,
		origin.X+size.X+bannerPadding, origin.Y+bannerPadding,
	).Intersect(image.Rect(0, 0, mat.Cols(), mat.Rows()))

	gocv.Rectangle(mat, plate, plateColor, -1)
	gocv.Rectangle(mat, plate, plateBorder, 1)
	gocv.PutText(mat, text, origin, gocv.FontHersheySimplex, bannerFontScale, textColor, bannerThickness)
}
