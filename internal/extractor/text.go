// Package extractor turns uploaded resume files into plain text and pulls
// candidate contact fields out of that text.
package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedType is returned for declared types the extractor has no
// parser for; callers fall back to treating the bytes as plain text.
var ErrUnsupportedType = errors.New("extractor: unsupported file type")

// TextExtractor produces best-effort plain text from raw resume bytes.
type TextExtractor interface {
	ExtractText(data []byte, declaredType string) (string, error)
}

// DocumentExtractor handles PDF, DOC/DOCX and plain text. Zero value is ready
// to use.
type DocumentExtractor struct{}

// NewDocumentExtractor returns the default extractor.
func NewDocumentExtractor() *DocumentExtractor {
	return &DocumentExtractor{}
}

// ExtractText dispatches on the declared type. Unknown types and binary
// parse failures never panic; the error return lets the caller decide how
// soft the failure is.
func (e *DocumentExtractor) ExtractText(data []byte, declaredType string) (string, error) {
	switch strings.ToLower(declaredType) {
	case "pdf":
		return extractPDF(data)
	case "doc", "docx":
		return extractDOCX(data)
	case "txt", "text", "":
		return decodePlainText(data), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, declaredType)
	}
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

// extractDOCX opens the OOXML container and strips word/document.xml down to
// its character data, inserting newlines at paragraph and break boundaries.
func extractDOCX(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty docx data")
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx container: %w", err)
	}

	var docFile *zip.File
	for _, f := range zr.File {
		name := strings.ReplaceAll(f.Name, "\\", "/")
		if name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", errors.New("word/document.xml not found")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("read document.xml: %w", err)
	}
	return stripDocxXML(raw), nil
}

func stripDocxXML(raw []byte) string {
	decoder := xml.NewDecoder(bytes.NewReader(raw))
	var buf strings.Builder
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return string(raw)
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf.Write(t)
		case xml.EndElement:
			if t.Name.Local == "p" || t.Name.Local == "br" {
				if buf.Len() > 0 {
					buf.WriteString("\n")
				}
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

// decodePlainText keeps valid UTF-8 and drops everything else, mirroring a
// lossy decode.
func decodePlainText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	var buf strings.Builder
	buf.Grow(len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r != utf8.RuneError || size > 1 {
			buf.WriteRune(r)
		}
		data = data[size:]
	}
	return buf.String()
}
