// Package extract loads source files and pulls out their text and tables.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"ragcore/internal/domain"
)

// Kind tags how a raw document is decoded.
type Kind int

const (
	Unsupported Kind = iota
	Raw
	PDF
	Word
)

func (k Kind) String() string {
	switch k {
	case Raw:
		return "raw"
	case PDF:
		return "pdf"
	case Word:
		return "word"
	default:
		return "unsupported"
	}
}

// RawDocument is a loaded file before extraction.
type RawDocument struct {
	Kind Kind
	Path string
	Name string
	Data []byte
}

// SupportedExtensions lists the extensions Load decodes, lowercased.
var SupportedExtensions = []string{".pdf", ".txt", ".md", ".docx"}

// KindOf maps a file name to its Kind by extension.
func KindOf(name string) Kind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return PDF
	case ".docx":
		return Word
	case ".txt", ".md":
		return Raw
	default:
		return Unsupported
	}
}

// Load reads path. Unsupported files are returned without their contents.
func Load(path string) (RawDocument, error) {
	raw := RawDocument{Kind: KindOf(path), Path: path, Name: filepath.Base(path)}
	if raw.Kind == Unsupported {
		return raw, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return raw, fmt.Errorf("%w: %s: %w", domain.ErrExtractionFailed, raw.Name, err)
	}
	raw.Data = data
	return raw, nil
}

// ExtractText returns the plain text of raw. Unsupported kinds yield "".
func ExtractText(raw RawDocument) (string, error) {
	var (
		text string
		err  error
	)
	switch raw.Kind {
	case Raw:
		if !utf8.Valid(raw.Data) {
			return "", fmt.Errorf("%w: %s is not valid UTF-8", domain.ErrExtractionFailed, raw.Name)
		}
		text = string(raw.Data)
	case PDF:
		text, err = pdfText(raw.Data)
	case Word:
		var body docxBody
		body, err = parseDocx(raw.Data)
		text = body.Text
	default:
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", domain.ErrExtractionFailed, raw.Name, err)
	}
	return strings.TrimSpace(text), nil
}

// ExtractTables returns the tables of raw. Only word documents carry
// tables.
func ExtractTables(raw RawDocument) ([]domain.Table, error) {
	if raw.Kind != Word {
		return nil, nil
	}
	body, err := parseDocx(raw.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrExtractionFailed, raw.Name, err)
	}
	return body.Tables, nil
}

// Extract loads path and returns its text and tables as a Document without
// an id.
func Extract(path string) (domain.Document, error) {
	raw, err := Load(path)
	if err != nil {
		return domain.Document{}, err
	}
	doc := domain.Document{Name: raw.Name, Path: raw.Path}
	if raw.Kind == Word {
		body, err := parseDocx(raw.Data)
		if err != nil {
			return doc, fmt.Errorf("%w: %s: %w", domain.ErrExtractionFailed, raw.Name, err)
		}
		doc.Text = strings.TrimSpace(body.Text)
		doc.Tables = body.Tables
		return doc, nil
	}
	doc.Text, err = ExtractText(raw)
	return doc, err
}
