// internal/app/system/csvio/csvio.go

// Package csvio turns raw delimited text into header-keyed rows for the
// upload pipeline. It relies on encoding/csv for the quoting rules of the
// file format (quoted fields may contain commas, newlines, and doubled
// quotes; \r\n is one terminator) and layers header extraction, blank-row
// dropping, and row numbering on top.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/vespahq/uploadhub/internal/domain/models"
)

// ErrEmptyFile is returned when parsing yields no data rows at all: the
// file is empty, contains only blank lines, or has a header and nothing
// else. Fatal to the current attempt; there is no partial result.
var ErrEmptyFile = errors.New("csv file contains no data rows")

// Document is a parsed CSV file: ordered headers plus rows keyed by header.
// Rows[i] corresponds to 1-based data row i+1, which is how validation
// errors are reported back to the user.
type Document struct {
	Headers []string
	Rows    []models.ParsedRow
}

// Parse reads comma-separated UTF-8 text from r. The first non-blank row
// supplies trimmed header names; every later non-blank row is zipped
// against the headers, with missing trailing cells defaulting to "".
// Cells beyond the header width are dropped. Row order is preserved.
func Parse(r io.Reader) (*Document, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // allow variable fields

	// Leading whitespace in unquoted cells is dropped at parse time, so a
	// parse/serialize round trip is not byte-identical for such cells.
	reader.TrimLeadingSpace = true

	var headers []string
	var rows []models.ParsedRow
	lineNum := 0

	for {
		rec, err := reader.Read()
		lineNum++
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		// Strip a UTF-8 BOM on the very first cell of the file.
		if headers == nil && len(rec) > 0 {
			rec[0] = strings.TrimPrefix(rec[0], "\ufeff")
		}

		if isBlankRecord(rec) {
			continue
		}

		if headers == nil {
			headers = make([]string, len(rec))
			for i, h := range rec {
				headers[i] = strings.TrimSpace(h)
			}
			continue
		}

		row := make(models.ParsedRow, len(headers))
		for i, h := range headers {
			if i < len(rec) {
				row[h] = rec[i]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	return &Document{Headers: headers, Rows: rows}, nil
}

// Serialize writes the document back out as CSV text. encoding/csv quotes
// any cell containing the delimiter, quotes, or newlines, so a parse
// followed by Serialize round-trips cell values.
func (d *Document) Serialize(w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(d.Headers); err != nil {
		return err
	}
	rec := make([]string, len(d.Headers))
	for _, row := range d.Rows {
		for i, h := range d.Headers {
			rec[i] = row[h]
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Cell returns the value for header name on the given 0-based row index.
func (d *Document) Cell(i int, name string) string {
	if i < 0 || i >= len(d.Rows) {
		return ""
	}
	return d.Rows[i][name]
}

// HasHeader reports whether name appears in the parsed header row.
func (d *Document) HasHeader(name string) bool {
	for _, h := range d.Headers {
		if h == name {
			return true
		}
	}
	return false
}

// isBlankRecord reports whether every cell is empty after trimming.
func isBlankRecord(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
