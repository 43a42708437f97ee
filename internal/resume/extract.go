package resume

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

const (
	MIMEPDF  = "application/pdf"
	MIMEDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var (
	ErrUnsupportedType = errors.New("resume: unsupported file type")
	ErrEmptyFile       = errors.New("resume: file is empty")
	ErrNoText          = errors.New("resume: no extractable text")
)

// Document is the text and metadata extracted from an uploaded file.
type Document struct {
	Text      string
	MIMEType  string
	PageCount int
	Title     string
	Author    string
}

// DetectType decides the file type from the extension and the leading
// bytes. Both must agree.
func DetectType(filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case ext == ".pdf" && bytes.HasPrefix(data, []byte("%PDF")):
		return MIMEPDF, nil
	case ext == ".docx" && bytes.HasPrefix(data, []byte("PK\x03\x04")):
		return MIMEDOCX, nil
	}
	if ext == "" {
		ext = "unknown"
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
}

// Extract pulls plain text out of a PDF or DOCX file.
func Extract(filename string, data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	mime, err := DetectType(filename, data)
	if err != nil {
		return nil, err
	}

	var doc *Document
	switch mime {
	case MIMEPDF:
		doc, err = extractPDF(data)
	case MIMEDOCX:
		doc, err = extractDOCX(data)
	}
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(doc.Text) == "" {
		return nil, ErrNoText
	}
	doc.MIMEType = mime
	return doc, nil
}

func extractPDF(data []byte) (*Document, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	var b strings.Builder
	pages := r.NumPage()
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			text, _ := page.GetPlainText(nil)
			b.WriteString(text)
			b.WriteString("\n")
			continue
		}
		for _, row := range rows {
			for _, word := range row.Content {
				b.WriteString(word.S)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	info := r.Trailer().Key("Info")
	return &Document{
		Text:      b.String(),
		PageCount: pages,
		Title:     info.Key("Title").Text(),
		Author:    info.Key("Author").Text(),
	}, nil
}

var (
	docxBreakRe = regexp.MustCompile(`</w:p>|<w:br\s*/>|<w:cr\s*/>`)
	docxTabRe   = regexp.MustCompile(`<w:tab\s*/>`)
	xmlTagRe    = regexp.MustCompile(`<[^>]+>`)
)

func extractDOCX(data []byte) (*Document, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}
	defer r.Close()

	return &Document{Text: docxPlainText(r.Editable().GetContent())}, nil
}

// docxPlainText turns WordprocessingML into lines of text, one per paragraph.
func docxPlainText(xml string) string {
	s := docxBreakRe.ReplaceAllString(xml, "\n")
	s = docxTabRe.ReplaceAllString(s, "\t")
	s = xmlTagRe.ReplaceAllString(s, "")
	return html.UnescapeString(s)
}
