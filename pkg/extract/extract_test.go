package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Section A: Demographics</w:t></w:r></w:p>
    <w:p><w:r><w:t xml:space="preserve">Q1. What is your </w:t></w:r><w:r><w:t>age?</w:t></w:r></w:p>
    <w:p><w:r><w:t>1</w:t><w:tab/><w:t>Under 18</w:t></w:r></w:p>
  </w:body>
</w:document>`

func buildDOCX(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, part := range []struct{ name, body string }{
		{"[Content_Types].xml", `<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`},
		{"word/document.xml", documentXML},
	} {
		w, err := zw.Create(part.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(part.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractDOCX(t *testing.T) {
	text, err := New().Extract(context.Background(), Source{Data: buildDOCX(t), Name: "survey.docx"})
	require.NoError(t, err)
	assert.Equal(t, "Section A: Demographics\n\nQ1. What is your age?\n\n1 Under 18", text)
}

func TestExtractFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "survey.txt")
	require.NoError(t, os.WriteFile(path, []byte("Q1.   Name?\r\n\r\n\r\n\r\nQ2. Age?  \n"), 0o644))

	text, err := New().Extract(context.Background(), Source{Path: path})
	require.NoError(t, err)
	assert.Equal(t, "Q1. Name?\n\nQ2. Age?", text)
}

func TestExtractFailures(t *testing.T) {
	ctx := context.Background()
	ex := New()

	_, err := ex.Extract(ctx, Source{Data: []byte{}, Name: "empty.docx"})
	assert.ErrorIs(t, err, ErrEmptyDocument)

	_, err = ex.Extract(ctx, Source{Data: []byte("   \n\n  "), Name: "blank.txt"})
	assert.ErrorIs(t, err, ErrEmptyDocument)

	_, err = ex.Extract(ctx, Source{Data: []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}, Name: "pic.png"})
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = ex.Extract(ctx, Source{Data: []byte("%PDF-1.4\nnot really a pdf"), Name: "broken.pdf"})
	assert.Error(t, err)

	_, err = ex.Extract(ctx, Source{Path: filepath.Join(t.TempDir(), "missing.docx")})
	assert.Error(t, err)

	_, err = ex.Extract(ctx, Source{})
	assert.Error(t, err)
}
