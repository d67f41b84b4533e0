package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedFormat reports an upload whose format cannot be turned into
// essay text.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Text extracts the essay text from an uploaded file. The format is decided
// by the file extension, falling back to content sniffing when the extension
// is missing or unknown. Libraries used: github.com/ledongthuc/pdf for PDF;
// DOCX is unpacked with archive/zip plus encoding/xml.
func Text(data []byte, filename string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty file")
	}
	switch detectFormat(data, filename) {
	case formatPDF:
		return textFromPDF(data)
	case formatDOCX:
		return textFromDOCX(data)
	case formatPlain:
		return textFromPlain(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

type format int

const (
	formatUnknown format = iota
	formatPlain
	formatPDF
	formatDOCX
)

func detectFormat(data []byte, filename string) format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md":
		return formatPlain
	case ".pdf":
		return formatPDF
	case ".docx":
		return formatDOCX
	}
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return formatPDF
	}
	if bytes.HasPrefix(data, []byte("PK\x03\x04")) {
		if hasZipEntry(data, "word/document.xml") {
			return formatDOCX
		}
		return formatUnknown
	}
	if utf8.Valid(data) {
		return formatPlain
	}
	return formatUnknown
}

func hasZipEntry(data []byte, name string) bool {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == name {
			return true
		}
	}
	return false
}

func textFromPlain(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errors.New("file is not valid UTF-8 text")
	}
	return strings.TrimSpace(string(data)), nil
}

func textFromPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func textFromDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var doc *zip.File
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", errors.New("document.xml file not found")
	}

	rc, err := doc.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return stripDocxXML(string(raw)), nil
}

// stripDocxXML keeps character data and turns paragraph and line breaks into
// newlines so word counting still works after extraction.
func stripDocxXML(raw string) string {
	decoder := xml.NewDecoder(strings.NewReader(raw))
	var buf strings.Builder
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return raw
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf.WriteString(string(t))
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
