package capture

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/mirror/internal/detector"
)

var (
	boneColor  = color.RGBA{R: 0, G: 200, B: 255, A: 0}
	jointColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	tipColor   = color.RGBA{R: 255, G: 0, B: 255, A: 0}
)

// DrawHand draws the hand skeleton onto img in place. Malformed frames are
// skipped.
func DrawHand(img *gocv.Mat, hand *detector.HandLandmarks) {
	if !hand.Valid() || img.Empty() {
		return
	}
	w, h := float64(img.Cols()), float64(img.Rows())
	px := func(p detector.Point3D) image.Point {
		return image.Pt(int(p.X*w), int(p.Y*h))
	}

	for _, b := range detector.HandBones {
		gocv.Line(img, px(hand.Points[b[0]]), px(hand.Points[b[1]]), boneColor, 2)
	}
	for i, p := range hand.Points[:detector.NumLandmarks] {
		c, r := jointColor, 3
		if i == detector.ThumbTip || i == detector.IndexTip {
			c, r = tipColor, 6
		}
		gocv.Circle(img, px(p), r, c, -1)
	}
}
