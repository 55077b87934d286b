package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"ragcore/internal/domain"
)

type docxBody struct {
	Text   string
	Tables []domain.Table
}

func parseDocx(data []byte) (docxBody, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return docxBody{}, fmt.Errorf("open docx: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return docxBody{}, fmt.Errorf("open document.xml: %w", err)
		}
		defer rc.Close()
		return parseDocumentXML(rc)
	}
	return docxBody{}, errors.New("docx has no word/document.xml")
}

// tableBuilder collects the rows of one w:tbl while it is open.
type tableBuilder struct {
	rows domain.Table
	row  []string
	cell []string
}

// parseDocumentXML walks the body in document order. Paragraphs outside
// tables form the text; paragraphs inside a cell form that cell.
func parseDocumentXML(r io.Reader) (docxBody, error) {
	dec := xml.NewDecoder(r)
	var (
		body       docxBody
		paragraphs []string
		para       strings.Builder
		inText     bool
		tables     []*tableBuilder
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return docxBody{}, fmt.Errorf("parse document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				para.WriteByte('\t')
			case "br", "cr":
				para.WriteByte('\n')
			case "tbl":
				tables = append(tables, &tableBuilder{})
			case "tr":
				if n := len(tables); n > 0 {
					tables[n-1].row = nil
				}
			case "tc":
				if n := len(tables); n > 0 {
					tables[n-1].cell = nil
				}
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				text := para.String()
				para.Reset()
				if n := len(tables); n > 0 {
					tables[n-1].cell = append(tables[n-1].cell, text)
				} else {
					paragraphs = append(paragraphs, text)
				}
			case "tc":
				if n := len(tables); n > 0 {
					tb := tables[n-1]
					tb.row = append(tb.row, strings.TrimSpace(strings.Join(tb.cell, "\n")))
				}
			case "tr":
				if n := len(tables); n > 0 {
					tb := tables[n-1]
					tb.rows = append(tb.rows, tb.row)
				}
			case "tbl":
				if n := len(tables); n > 0 {
					done := tables[n-1]
					tables = tables[:n-1]
					body.Tables = append(body.Tables, done.rows)
				}
			}
		}
	}
	body.Text = strings.Join(paragraphs, "\n")
	return body, nil
}
