package extract

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/matcert-extractor/constants"
	"github.com/joseph-ayodele/matcert-extractor/internal/composition"
	"github.com/joseph-ayodele/matcert-extractor/internal/ocr"
)

func TestTextFileReader(t *testing.T) {
	text := ocr.MergePages([]string{"Heat No. 1", "| C | Si | Mn |\n| 0.01 | 0.2 | 0.5 |"})
	p := filepath.Join(t.TempDir(), "merged_ocr.txt")
	require.NoError(t, os.WriteFile(p, []byte(text), 0o644))

	res, err := TextFileReader{}.Extract(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, text, res.Text)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, constants.TXT, res.SourceType)
}

func TestTextFileReaderPlainText(t *testing.T) {
	p := filepath.Join(t.TempDir(), "page.txt")
	require.NoError(t, os.WriteFile(p, []byte("| C | Si | Mn |"), 0o644))
	res, err := TextFileReader{}.Extract(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pages)
}

func TestTextFileReaderMissing(t *testing.T) {
	_, err := TextFileReader{}.Extract(context.Background(), "/nope/ocr.txt")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "read ocr text"))
}

func TestRuleParser(t *testing.T) {
	cfg := composition.DefaultConfig()
	cfg.HeaderMinElements = 4
	p := NewRuleParser(cfg)

	res := p.Parse("| C | Si | Mn |\n| 0.01 | 0.2 | 0.5 |")
	assert.True(t, res.Empty(), "three symbols no longer make a header")

	res = p.Parse("| C | Si | Mn | Fe |\n| 0.01 | 0.2 | 0.5 | 0.1 |")
	assert.Len(t, res.Records, 4)
}
