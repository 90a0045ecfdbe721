// Package extract turns uploaded resumes into plain text.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/fadilmartias/resume-insight/internal/logger"
	"github.com/nguyenthenguyen/docx"
	"go.uber.org/zap"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooShort        = errors.New("content too short for meaningful analysis")
)

// DefaultMinLength is the shortest text accepted from documents.
const DefaultMinLength = 100

type Kind string

const (
	KindPDF   Kind = "pdf"
	KindDOCX  Kind = "docx"
	KindText  Kind = "text"
	KindImage Kind = "image"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

type Document struct {
	Kind     Kind   `json:"kind"`
	MIMEType string `json:"mime_type"`
	Text     string `json:"text"`
	Pages    int    `json:"pages,omitempty"`
	OCR      bool   `json:"ocr"`
	// Image holds the raw upload for image resumes so it can be sent to a
	// vision model.
	Image []byte `json:"-"`
}

type Extractor struct {
	ocr       OCR
	log       *zap.Logger
	MinLength int
}

// New returns an Extractor. ocr may be nil to disable OCR.
func New(ocr OCR, log *zap.Logger) *Extractor {
	return &Extractor{ocr: ocr, log: logger.OrNop(log), MinLength: DefaultMinLength}
}

// Text extracts the text of one uploaded file.
func (e *Extractor) Text(ctx context.Context, filename, mime string, data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: empty file", filename)
	}
	kind, mimeType, err := DetectType(filename, mime, data)
	if err != nil {
		return nil, err
	}

	doc := &Document{Kind: kind, MIMEType: mimeType}
	switch kind {
	case KindPDF:
		err = e.pdf(ctx, data, doc)
	case KindDOCX:
		doc.Text, err = docxText(data)
	case KindText:
		doc.Text = strings.ToValidUTF8(string(data), "")
	case KindImage:
		err = e.image(ctx, data, doc)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	doc.Text = normalizeSpace(doc.Text)
	if kind != KindImage && utf8.RuneCountInString(doc.Text) < e.MinLength {
		return nil, fmt.Errorf("%s: %w (%d chars)", filename, ErrTooShort, utf8.RuneCountInString(doc.Text))
	}

	e.log.Info("extracted resume text",
		zap.String("file", filename),
		zap.String("kind", string(kind)),
		zap.Int("chars", len(doc.Text)),
		zap.Bool("ocr", doc.OCR),
	)
	return doc, nil
}

func (e *Extractor) pdf(ctx context.Context, data []byte, doc *Document) error {
	text, pages, err := pdfText(data)
	if err != nil {
		return err
	}
	doc.Text, doc.Pages = text, pages
	if utf8.RuneCountInString(strings.TrimSpace(text)) >= e.MinLength || e.ocr == nil {
		return nil
	}

	e.log.Info("pdf has no usable text layer, running OCR", zap.Int("pages", pages))
	ocrText, err := ocrPDF(ctx, e.ocr, data, e.log)
	if err != nil {
		return err
	}
	doc.Text, doc.OCR = ocrText, true
	return nil
}

func (e *Extractor) image(ctx context.Context, data []byte, doc *Document) error {
	doc.Image = data
	if e.ocr == nil {
		return nil
	}
	text, err := e.ocr.Recognize(ctx, data)
	if err != nil {
		// The vision model can still read the image.
		e.log.Warn("image OCR failed", zap.Error(err))
		return nil
	}
	doc.Text, doc.OCR = text, true
	return nil
}

// DetectType resolves the document kind from the declared MIME type, the
// file extension and finally the content itself.
func DetectType(filename, mime string, data []byte) (Kind, string, error) {
	mime = strings.ToLower(strings.TrimSpace(strings.SplitN(mime, ";", 2)[0]))
	if k, ok := kindForMIME(mime); ok {
		return k, mime, nil
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return KindPDF, mimePDF, nil
	case ".docx":
		return KindDOCX, mimeDOCX, nil
	case ".txt", ".md":
		return KindText, "text/plain", nil
	case ".png":
		return KindImage, "image/png", nil
	case ".jpg", ".jpeg":
		return KindImage, "image/jpeg", nil
	case ".webp":
		return KindImage, "image/webp", nil
	}

	sniffed := strings.SplitN(http.DetectContentType(data), ";", 2)[0]
	if k, ok := kindForMIME(sniffed); ok {
		return k, sniffed, nil
	}
	return "", "", fmt.Errorf("%w: %s", ErrUnsupportedType, firstNonEmpty(mime, sniffed))
}

func kindForMIME(mime string) (Kind, bool) {
	switch mime {
	case mimePDF:
		return KindPDF, true
	case mimeDOCX:
		return KindDOCX, true
	case "text/plain", "text/markdown":
		return KindText, true
	case "image/png", "image/jpeg", "image/webp":
		return KindImage, true
	}
	return "", false
}

var (
	paragraphEnd = regexp.MustCompile(`</w:p>|<w:br/>|<w:tab/>`)
	xmlTag       = regexp.MustCompile(`<[^>]+>`)
	spaceRun     = regexp.MustCompile(`[ \t]+`)
	blankLines   = regexp.MustCompile(`\n{3,}`)
)

func docxText(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to parse docx: %w", err)
	}
	defer doc.Close()

	return stripXML(doc.Editable().GetContent()), nil
}

// stripXML reduces WordprocessingML to text, one line per paragraph.
func stripXML(content string) string {
	content = paragraphEnd.ReplaceAllStringFunc(content, func(tag string) string {
		if tag == "<w:tab/>" {
			return " "
		}
		return "\n"
	})
	return html.UnescapeString(xmlTag.ReplaceAllString(content, ""))
}

func normalizeSpace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = spaceRun.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
