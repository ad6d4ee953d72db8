package ocr

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"regexp"
	"strconv"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

var reOSDRotate = regexp.MustCompile(`(?m)^\s*Rotate:\s*(\d+)`)

// ParseOSDRotation reads the "Rotate: N" line of tesseract --psm 0 output.
// N is the clockwise rotation that makes the page upright.
func ParseOSDRotation(osd string) (int, bool) {
	m := reOSDRotate.FindStringSubmatch(osd)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	switch n {
	case 0, 90, 180, 270:
		return n, true
	}
	return 0, false
}

// fixOrientation writes src rotated upright to dst as PNG when OSD reports a
// rotation, and returns the path to OCR plus an optional warning. Any failure
// leaves src untouched. dst may equal src.
func (e *Extractor) fixOrientation(ctx context.Context, path, dst string) (string, string) {
	args := []string{path, "stdout", "--psm", "0"}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	out, _, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return path, fmt.Sprintf("orientation detection failed for %s: %v", path, err)
	}
	deg, ok := ParseOSDRotation(string(out))
	if !ok || deg == 0 {
		return path, ""
	}
	if err := rotateFile(path, dst, deg); err != nil {
		return path, fmt.Sprintf("rotate %s by %d: %v", path, deg, err)
	}
	e.logger.Debug("ocr.rotate", "path", path, "degrees", deg)
	return dst, ""
}

func rotateFile(path, dstPath string, deg int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	src, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return err
	}
	dst := RotateClockwise(src, deg)

	tmp := dstPath + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := png.Encode(out, dst); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dstPath)
}

// RotateClockwise returns src rotated by deg degrees clockwise. Only right
// angles are supported; any other value returns src unchanged.
func RotateClockwise(src image.Image, deg int) image.Image {
	b := src.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	minX, minY := float64(b.Min.X), float64(b.Min.Y)

	var m f64.Aff3
	var size image.Point
	switch deg {
	case 90:
		m = f64.Aff3{0, -1, h + minY, 1, 0, -minX}
		size = image.Pt(b.Dy(), b.Dx())
	case 180:
		m = f64.Aff3{-1, 0, w + minX, 0, -1, h + minY}
		size = image.Pt(b.Dx(), b.Dy())
	case 270:
		m = f64.Aff3{0, 1, -minY, -1, 0, w + minX}
		size = image.Pt(b.Dy(), b.Dx())
	default:
		return src
	}
	dst := image.NewRGBA(image.Rectangle{Max: size})
	draw.NearestNeighbor.Transform(dst, m, src, b, draw.Src, nil)
	return dst
}
