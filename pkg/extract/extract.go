// Package extract turns uploaded questionnaire documents into plain text.
package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	pdf "github.com/ledongthuc/pdf"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeText = "text/plain"
	mimeZip  = "application/zip"
)

var (
	ErrEmptyDocument = errors.New("document is empty")
	ErrUnsupported   = errors.New("unsupported document type")
)

// Source names a document either by path or by its bytes. Data wins when both are set.
type Source struct {
	Path string
	Data []byte
	Name string
}

type Extractor interface {
	Extract(ctx context.Context, src Source) (string, error)
}

// TextExtractor handles DOCX, PDF and plain text, chosen by content sniffing.
type TextExtractor struct{}

var _ Extractor = TextExtractor{}

func New() TextExtractor {
	return TextExtractor{}
}

func (TextExtractor) Extract(ctx context.Context, src Source) (string, error) {
	data := src.Data
	name := src.Name
	if data == nil {
		if src.Path == "" {
			return "", fmt.Errorf("extract: no path or data given")
		}
		raw, err := os.ReadFile(src.Path)
		if err != nil {
			return "", fmt.Errorf("extract: read %s: %w", src.Path, err)
		}
		data = raw
		if name == "" {
			name = filepath.Base(src.Path)
		}
	}
	if len(data) == 0 {
		return "", fmt.Errorf("extract %s: %w", name, ErrEmptyDocument)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var (
		text string
		err  error
	)
	mtype := mimetype.Detect(data)
	switch {
	case mtype.Is(mimeDOCX), mtype.Is(mimeZip):
		text, err = extractDOCX(data)
	case mtype.Is(mimePDF):
		text, err = extractPDF(data)
	case isText(mtype):
		text = normalize(string(data))
	default:
		return "", fmt.Errorf("extract %s: %w: %s", name, ErrUnsupported, mtype.String())
	}
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", name, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("extract %s: %w", name, ErrEmptyDocument)
	}
	return text, nil
}

func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is(mimeText) {
			return true
		}
	}
	return false
}

func extractPDF(data []byte) (text string, err error) {
	// the pdf reader panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parse: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf reader: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf plaintext: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("pdf read: %w", err)
	}
	return normalize(string(b)), nil
}

// extractDOCX walks word/document.xml keeping paragraph boundaries, which the
// segmentation prompt relies on to tell questions apart.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("docx container: %w", err)
	}
	var part *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			part = f
			break
		}
	}
	if part == nil {
		return "", fmt.Errorf("docx: word/document.xml missing")
	}
	rc, err := part.Open()
	if err != nil {
		return "", fmt.Errorf("docx open: %w", err)
	}
	defer rc.Close()

	var sb strings.Builder
	dec := xml.NewDecoder(rc)
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("docx xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return normalize(sb.String()), nil
}

var (
	spaceRun     = regexp.MustCompile(`[ \t\f\v]+`)
	blankLineRun = regexp.MustCompile(`\n{3,}`)
)

// normalize trims every line and collapses runs of blank lines, keeping paragraph breaks.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	return strings.TrimSpace(blankLineRun.ReplaceAllString(s, "\n\n"))
}
