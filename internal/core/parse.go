package core

// parse.go detects the format of an uploaded file and turns it into raw
// records. CSV and JSON are parsed in-process; spreadsheets go through the
// ordered strategy chain in spreadsheet.go.

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var (
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
	zipMagic = []byte("PK\x03\x04")
)

// ParsedFile is the parser's output: column names and records in source order.
type ParsedFile struct {
	Format    Format
	Columns   []string
	Records   []RawRecord
	SheetName string
	Warnings  []string
}

// Parser turns file bytes into raw records.
type Parser struct {
	spreadsheet []SpreadsheetStrategy
}

// NewParser returns a parser that reads spreadsheets by trying strategies in order.
func NewParser(strategies ...SpreadsheetStrategy) *Parser {
	return &Parser{spreadsheet: strategies}
}

// DetectFormat picks a format from the declared MIME type, then the filename
// extension, then the content itself.
func DetectFormat(name, contentType string, data []byte) Format {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mediaType {
		case "text/csv", "application/csv":
			return FormatCSV
		case "application/json", "text/json":
			return FormatJSON
		case xlsxMIME:
			return FormatXLSX
		}
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV
	case ".json":
		return FormatJSON
	case ".xlsx":
		return FormatXLSX
	}

	if bytes.HasPrefix(data, zipMagic) {
		return FormatXLSX
	}
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(data, utf8BOM), " \t\r\n")
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		return FormatJSON
	}
	return FormatCSV
}

// Parse detects the format of file and parses it.
// Every failure is a *ParseError.
func (p *Parser) Parse(ctx context.Context, file FileInput) (*ParsedFile, error) {
	if len(bytes.TrimSpace(bytes.TrimPrefix(file.Data, utf8BOM))) == 0 {
		return nil, newParseError("empty file", nil)
	}

	format := DetectFormat(file.Name, file.ContentType, file.Data)

	var (
		parsed *ParsedFile
		err    error
	)
	switch format {
	case FormatJSON:
		parsed, err = parseJSON(file.Data)
	case FormatXLSX:
		parsed, err = p.parseSpreadsheet(ctx, file)
	default:
		parsed, err = parseDelimited(file.Data)
	}
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			return nil, pe
		}
		return nil, newParseError(string(format), err)
	}

	parsed.Format = format
	if len(parsed.Records) == 0 {
		return nil, newParseError("no data rows after header", nil)
	}
	return parsed, nil
}

// parseDelimited reads comma-separated text. The first non-blank line is the
// header and is normalized immediately so repeated header cells stay distinct.
// Blank lines are skipped. Short rows are padded and long rows truncated.
func parseDelimited(data []byte) (*ParsedFile, error) {
	data = sanitizeUTF8(bytes.TrimPrefix(data, utf8BOM))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var (
		header  []string
		records []RawRecord
	)
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, newParseError("invalid csv", err)
		}
		if isEmptyRow(row) {
			continue
		}
		if header == nil {
			header = normalizeHeaders(row)
			continue
		}

		rec := NewRawRecord(len(header))
		for i, col := range header {
			val := ""
			if i < len(row) {
				val = row[i]
			}
			rec.Set(col, val)
		}
		records = append(records, rec)
	}

	if header == nil {
		return nil, newParseError("empty file", nil)
	}

	return &ParsedFile{Columns: header, Records: records}, nil
}

// parseJSON reads a top-level array of objects, preserving key order.
func parseJSON(data []byte) (*ParsedFile, error) {
	data = sanitizeUTF8(bytes.TrimPrefix(data, utf8BOM))

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, newParseError("invalid structure", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, newParseError("invalid structure", nil)
	}

	var (
		records []RawRecord
		columns []string
		seen    = make(map[string]bool)
	)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, newParseError("invalid structure", err)
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '{' {
			return nil, newParseError("invalid structure", fmt.Errorf("element %d is not an object", len(records)+1))
		}

		rec, err := decodeObject(dec)
		if err != nil {
			return nil, newParseError("invalid structure", err)
		}
		for _, col := range rec.Columns {
			if !seen[col] {
				seen[col] = true
				columns = append(columns, col)
			}
		}
		records = append(records, rec)
	}

	if _, err := dec.Token(); err != nil {
		return nil, newParseError("invalid structure", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, newParseError("invalid structure", fmt.Errorf("trailing data after array"))
	}

	return &ParsedFile{Columns: columns, Records: records}, nil
}

// decodeObject reads the members of an object whose '{' was already consumed.
func decodeObject(dec *json.Decoder) (RawRecord, error) {
	rec := NewRawRecord(8)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return RawRecord{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return RawRecord{}, fmt.Errorf("object key is not a string")
		}

		var val any
		if err := dec.Decode(&val); err != nil {
			return RawRecord{}, fmt.Errorf("value for %q: %w", key, err)
		}
		rec.Set(key, val)
	}
	if _, err := dec.Token(); err != nil {
		return RawRecord{}, err
	}
	return rec, nil
}

// sanitizeUTF8 replaces invalid byte sequences with U+FFFD.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('\uFFFD')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
