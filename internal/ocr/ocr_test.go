package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/matcert-extractor/internal/common"
)

// stubRunner fakes pdftoppm and tesseract OSD.
type stubRunner struct {
	mu      sync.Mutex
	calls   []string
	pages   int
	osd     string
	osdErr  error
	ppmErr  error
	ocrText string
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, name+" "+strings.Join(args, " "))
	s.mu.Unlock()

	switch {
	case name == "pdftoppm":
		if s.ppmErr != nil {
			return nil, []byte("Syntax Error"), s.ppmErr
		}
		prefix := args[len(args)-1]
		for i := 1; i <= s.pages; i++ {
			if err := writePNG(fmt.Sprintf("%s-%d.png", prefix, i), 4, 2); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil
	case name == "tesseract" && contains(args, "0"):
		return []byte(s.osd), nil, s.osdErr
	case name == "tesseract":
		return []byte(s.ocrText), nil, nil
	}
	return nil, nil, fmt.Errorf("unexpected command %s", name)
}

func (s *stubRunner) count(prefix string) int {
	n := 0
	for _, c := range s.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func contains(xs []string, v string) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// fakeEngine returns canned text per call.
type fakeEngine struct {
	texts []string
	errs  []error
	seen  []string
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(_ context.Context, p string) (string, error) {
	i := len(f.seen)
	f.seen = append(f.seen, p)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if i < len(f.texts) {
		return f.texts[i], err
	}
	return "", err
}

func writePNG(path string, w, h int) error {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func TestExtractImage(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "cert.png")
	require.NoError(t, writePNG(in, 4, 2))

	r := &stubRunner{osd: "Page number: 0\nOrientation in degrees: 270\nRotate: 90\nOrientation confidence: 5.2\n"}
	eng := &fakeEngine{texts: []string{"| C | Si | Mn |\r\n| 0,01 | 0,2 | 0,5 |"}}
	e := NewExtractor(Config{FixRotation: true}, eng, nil).WithRunner(r)

	res, err := e.Extract(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Pages)
	assert.Equal(t, "image-ocr", res.Method)
	assert.Equal(t, "fake", res.Engine)
	assert.Equal(t, PageBanner(1)+"| C | Si | Mn |\n| 0,01 | 0,2 | 0,5 |", res.Text)
	assert.Empty(t, res.Warnings)
	require.Len(t, eng.seen, 1)
	assert.NotEqual(t, in, eng.seen[0], "rotated copy is OCRed, input untouched")

	f, err := os.Open(in)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Width)
}

func TestExtractImageOrientationFailureIsWarning(t *testing.T) {
	in := filepath.Join(t.TempDir(), "cert.jpg")
	require.NoError(t, os.WriteFile(in, []byte("jpeg"), 0o644))

	r := &stubRunner{osdErr: errors.New("Too few characters")}
	eng := &fakeEngine{texts: []string{"text"}}
	res, err := NewExtractor(Config{FixRotation: true}, eng, nil).WithRunner(r).Extract(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "orientation detection failed")
	assert.Equal(t, in, eng.seen[0])
}

func TestExtractUnsupported(t *testing.T) {
	_, err := NewExtractor(Config{}, &fakeEngine{}, nil).Extract(context.Background(), "notes.docx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported extension")
}

func TestExtractInvalidPDF(t *testing.T) {
	in := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(in, []byte("not a pdf"), 0o644))
	_, err := NewExtractor(Config{}, &fakeEngine{}, nil).Extract(context.Background(), in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read pdf")
}

func TestRasterizeKeepsImages(t *testing.T) {
	imgDir := t.TempDir()
	r := &stubRunner{pages: 3}
	e := NewExtractor(Config{KeepImages: true, ImagesDir: imgDir, DPI: 300}, &fakeEngine{}, nil).WithRunner(r)

	pages, cleanup, _, err := e.rasterize(context.Background(), "/in/MTC 2024.pdf", 3)
	require.NoError(t, err)
	defer cleanup()

	require.Len(t, pages, 3)
	for i, p := range pages {
		assert.Equal(t, PageImagePath(imgDir, "MTC 2024", i+1), p)
		assert.FileExists(t, p)
	}
	require.Len(t, r.calls, 1)
	assert.Contains(t, r.calls[0], "pdftoppm -r 300 -png /in/MTC 2024.pdf")
}

func TestRasterizeMaxPages(t *testing.T) {
	r := &stubRunner{pages: 2}
	e := NewExtractor(Config{MaxPages: 2}, &fakeEngine{}, nil).WithRunner(r)
	pages, cleanup, _, err := e.rasterize(context.Background(), "a.pdf", 12)
	require.NoError(t, err)
	defer cleanup()
	assert.Len(t, pages, 2)
	assert.Contains(t, r.calls[0], "-l 2")
}

func TestRasterizeFailure(t *testing.T) {
	r := &stubRunner{ppmErr: errors.New("exit status 1")}
	e := NewExtractor(Config{}, &fakeEngine{}, nil).WithRunner(r)
	_, cleanup, warns, err := e.rasterize(context.Background(), "a.pdf", 1)
	require.Error(t, err)
	cleanup()
	assert.Equal(t, []string{"Syntax Error"}, warns)
}

func TestRecognizePages(t *testing.T) {
	dir := t.TempDir()
	var pages []string
	for i := 1; i <= 3; i++ {
		p := filepath.Join(dir, fmt.Sprintf("p-%d.png", i))
		require.NoError(t, writePNG(p, 4, 2))
		pages = append(pages, p)
	}
	r := &stubRunner{osd: "Rotate: 180"}
	eng := &fakeEngine{
		texts: []string{"one", "", ""},
		errs:  []error{nil, nil, errors.New("timeout")},
	}
	e := NewExtractor(Config{}, eng, nil).WithRunner(r)

	texts, warns, err := e.recognizePages(context.Background(), pages, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "", ""}, texts)
	require.Len(t, warns, 2)
	assert.Equal(t, "page 2: empty text", warns[0])
	assert.Equal(t, "page 3: timeout", warns[1])
	assert.Equal(t, 3, r.count("tesseract"))
	assert.Equal(t, pages, eng.seen, "pages rotate in place")
}

func TestRecognizePagesAllFailed(t *testing.T) {
	eng := &fakeEngine{errs: []error{errors.New("down"), errors.New("down")}}
	e := NewExtractor(Config{}, eng, nil)
	_, _, err := e.recognizePages(context.Background(), []string{"a.png", "b.png"}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 pages")
	assert.ErrorIs(t, err, common.ErrOCR)
}

func TestRecognizePagesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := NewExtractor(Config{}, &fakeEngine{}, nil)
	_, _, err := e.recognizePages(ctx, []string{"a.png"}, false)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSortByPageNumber(t *testing.T) {
	paths := []string{"/t/page-10.png", "/t/page-2.png", "/t/page-1.png"}
	sortByPageNumber(paths)
	assert.Equal(t, []string{"/t/page-1.png", "/t/page-2.png", "/t/page-10.png"}, paths)
}

func TestTesseractEngine(t *testing.T) {
	r := &stubRunner{ocrText: "Heat No. 123\n-----\nTi-6Al-4V"}
	eng := NewTesseractEngine(Config{TesseractLang: "eng+deu", TessdataDir: "/td"}, r, nil)
	txt, err := eng.Recognize(context.Background(), "p.png")
	require.NoError(t, err)
	assert.Equal(t, "Heat No. 123\n\nTi-6Al-4V", txt)
	assert.Equal(t, "tesseract p.png stdout -l eng+deu --psm 6 --tessdata-dir /td", r.calls[0])
}
