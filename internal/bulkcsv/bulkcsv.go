// Package bulkcsv reads bulk title,style requests and writes suggestion sheets.
package bulkcsv

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"thumbexpert/internal/model"
)

// Header is the first line of every written sheet.
const Header = "Video Title,Style,Suggested Text"

var (
	ErrNoData      = errors.New("bulkcsv: header and at least one data row required")
	ErrNoValidRows = errors.New("bulkcsv: no valid title,style rows")
)

// Parse reads a header line followed by title,style rows. Fields are split on
// commas without quote handling; rows missing either field are skipped.
func Parse(r io.Reader) ([]model.BulkItem, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var lines []string
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("bulkcsv: reading input: %w", err)
	}
	if len(lines) <= 1 {
		return nil, ErrNoData
	}

	var items []model.BulkItem
	for _, row := range lines[1:] {
		parts := strings.Split(row, ",")
		if len(parts) < 2 {
			continue
		}
		title, style := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if title == "" || style == "" {
			continue
		}
		items = append(items, model.BulkItem{Title: title, Style: style})
	}
	if len(items) == 0 {
		return nil, ErrNoValidRows
	}
	return items, nil
}

// Write emits the header and one fully quoted row per result.
func Write(w io.Writer, results []model.BulkResult) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(Header)
	for _, res := range results {
		bw.WriteByte('\n')
		bw.WriteString(quote(res.Title))
		bw.WriteByte(',')
		bw.WriteString(quote(res.Style))
		bw.WriteByte(',')
		bw.WriteString(quote(res.Suggestion))
	}
	bw.WriteByte('\n')
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("bulkcsv: writing output: %w", err)
	}
	return nil
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
