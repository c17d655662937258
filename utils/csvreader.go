package utils

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseCSV reads every row of r. A leading UTF-8 byte order mark, as written
// by spreadsheet exports, is dropped and rows may have differing widths.
func ParseCSV(r io.Reader) ([][]string, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	return records, nil
}
