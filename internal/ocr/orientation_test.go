package ocr

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOSDRotation(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"Page number: 0\nOrientation in degrees: 90\nRotate: 270\n", 270, true},
		{"Rotate: 0", 0, true},
		{"Rotate: 45", 0, false},
		{"Orientation confidence: 1.0", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseOSDRotation(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestRotateClockwise(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	// 3x2 with the top-left pixel marked
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	src.Set(0, 0, red)

	tests := []struct {
		deg    int
		size   image.Point
		marked image.Point
	}{
		{90, image.Pt(2, 3), image.Pt(1, 0)},
		{180, image.Pt(3, 2), image.Pt(2, 1)},
		{270, image.Pt(2, 3), image.Pt(0, 2)},
	}
	for _, tt := range tests {
		dst := RotateClockwise(src, tt.deg)
		assert.Equal(t, tt.size, dst.Bounds().Size(), "deg %d", tt.deg)
		r, _, _, _ := dst.At(tt.marked.X, tt.marked.Y).RGBA()
		assert.Equal(t, uint32(0xffff), r, "deg %d", tt.deg)
	}

	assert.Same(t, src, RotateClockwise(src, 45))
}

func TestRotateClockwiseOffsetBounds(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	src := image.NewRGBA(image.Rect(10, 20, 13, 22))
	src.Set(10, 20, red)
	dst := RotateClockwise(src, 90)
	assert.Equal(t, image.Rect(0, 0, 2, 3), dst.Bounds())
	r, _, _, _ := dst.At(1, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)
}
