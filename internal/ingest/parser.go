package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

var (
	ErrUnsupported = errors.New("unsupported file type")
	ErrTooLong     = errors.New("note exceeds maximum length")
	ErrEmpty       = errors.New("note is empty")
)

type Document struct {
	Title      string
	SourcePath string
	Text       string
}

// ParseFile extracts a note body from a .txt, .md, .docx or .pdf file and
// enforces maxLength (in characters) when it is positive.
func ParseFile(path string, maxLength int) (*Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	extract, ok := extractors[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, ext)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	text, err := extract(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	text, err = CheckText(normalizeWhitespace(text), maxLength)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return &Document{
		Title:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		SourcePath: path,
		Text:       text,
	}, nil
}

var extractors = map[string]func([]byte) (string, error){
	".txt":  plainText,
	".md":   plainText,
	".docx": parseDOCX,
	".pdf":  parsePDF,
}

func plainText(raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", errors.New("not valid utf-8")
	}
	return string(raw), nil
}

// CheckText trims text and rejects empty bodies or bodies longer than
// maxLength characters.
func CheckText(text string, maxLength int) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmpty
	}
	if n := utf8.RuneCountInString(text); maxLength > 0 && n > maxLength {
		return "", fmt.Errorf("%w: %d > %d characters", ErrTooLong, n, maxLength)
	}
	return text, nil
}

// parseDOCX reads word/document.xml and keeps one line per paragraph.
// Tabs become spaces and manual line breaks become newlines.
func parseDOCX(raw []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	body, err := zr.Open("word/document.xml")
	if err != nil {
		return "", fmt.Errorf("docx has no document body: %w", err)
	}
	defer body.Close()

	decoder := xml.NewDecoder(body)
	var b strings.Builder
	inText := false
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("decode docx body: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte(' ')
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}

// parsePDF extracts the text of every page in order. Pages whose text
// cannot be decoded are skipped; a PDF with no text at all (a scan) is
// reported as empty.
func parsePDF(raw []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages = append(pages, text)
	}
	if strings.TrimSpace(strings.Join(pages, "")) == "" {
		return "", fmt.Errorf("pdf has no extractable text: %w", ErrEmpty)
	}
	return strings.Join(pages, "\n"), nil
}

func normalizeWhitespace(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
