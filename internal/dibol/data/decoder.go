// Package data decodes fixed-width DIBOL data files using record layouts
// produced by the schema package.
package data

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"

	"github.com/bakemark/invrpt/internal/dibol/schema"
)

// Record names recognised by Classify. The data record names match the
// RECORD declarations of INVPRT.DEF.
const (
	FileHeader    = "FILE_HEADER"
	EndMarker     = "END_MARKER"
	HeaderRecord  = "INVHDR,X"
	PurchaseOrder = "INVPOR,X"
	DetailRecord  = "INVDTL"
)

const (
	minLineLength = 8
	// recordCodeColumn is the zero-based column holding the record code.
	recordCodeColumn = 7
	headerPadding    = "        "
	endMarkerPrefix  = "]"
)

// Row is one decoded record keyed by lower-cased field name. Values are
// string for alpha fields, int64 for unscaled decimals and decimal.Decimal
// for scaled decimals.
type Row map[string]any

// Batch holds the decoded rows of one data file in input order.
type Batch struct {
	Headers        []Row `json:"headers"`
	Details        []Row `json:"details"`
	PurchaseOrders []Row `json:"purchase_orders"`
}

// Decoder decodes data lines for a fixed set of record layouts.
// It is safe for concurrent use.
type Decoder struct {
	layouts map[string]*schema.Record
}

// New indexes the layouts by record name. When a name is declared more than
// once the last declaration is used.
func New(records []schema.Record) *Decoder {
	layouts := make(map[string]*schema.Record, len(records))
	for i := range records {
		layouts[records[i].Name] = &records[i]
	}
	return &Decoder{layouts: layouts}
}

// Classify determines the record type of a data line from its position
// rather than a tag. It returns false for lines it does not recognise.
func Classify(line string) (string, bool) {
	if len(line) < minLineLength {
		return "", false
	}
	if strings.HasPrefix(line, headerPadding) {
		return FileHeader, true
	}
	if strings.HasPrefix(strings.TrimSpace(line), endMarkerPrefix) {
		return EndMarker, true
	}

	switch line[recordCodeColumn] {
	case '0':
		return HeaderRecord, true
	case '1':
		return PurchaseOrder, true
	case '2':
		return DetailRecord, true
	}
	return "", false
}

// Decode extracts every field of the named layout from line. Malformed
// numbers decode as zero rather than failing the record. It returns false
// when no layout is registered under recordName.
func (d *Decoder) Decode(line, recordName string) (Row, bool) {
	layout, ok := d.layouts[recordName]
	if !ok {
		return nil, false
	}

	row := make(Row, len(layout.Fields))
	for _, f := range layout.Fields {
		raw := slice(line, f)
		key := strings.ToLower(f.Name)

		switch f.Type {
		case schema.Alpha:
			row[key] = latin1(raw)
		case schema.Decimal:
			row[key] = number(raw, f.Decimals)
		}
	}
	return row, true
}

// slice returns the trimmed column range of a field, or "" when the line is
// too short or the field has no position.
func slice(line string, f schema.Field) string {
	if !f.HasPosition() || f.End > len(line) {
		return ""
	}
	return strings.TrimSpace(line[f.Start-1 : f.End])
}

// number parses an implied-scale integer. The value is scaled exactly so no
// float rounding is introduced.
func number(raw string, decimals int) any {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		n = 0
	}
	if decimals > 0 {
		return decimal.New(n, -int32(decimals))
	}
	return n
}

// latin1 converts ISO-8859-1 bytes to UTF-8.
func latin1(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			out, err := charmap.ISO8859_1.NewDecoder().String(s)
			if err != nil {
				return s
			}
			return out
		}
	}
	return s
}

// DecodeStream decodes every line of r in order. Detail lines inherit the
// invoice number, date and customer of the closest preceding header and are
// numbered from 1 within it; details that precede any header are dropped.
// Only read errors are returned.
func (d *Decoder) DecodeStream(r io.Reader) (*Batch, error) {
	var (
		batch   = &Batch{}
		current *headerContext
		lineNum int
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")

		recordType, ok := Classify(line)
		if !ok {
			continue
		}

		switch recordType {
		case HeaderRecord:
			row, ok := d.Decode(line, recordType)
			if !ok {
				continue
			}
			batch.Headers = append(batch.Headers, row)
			current = newHeaderContext(row)
			lineNum = 0

		case DetailRecord:
			row, ok := d.Decode(line, recordType)
			if !ok || current == nil {
				continue
			}
			lineNum++
			row["invnum"] = current.invoiceNumber
			row["invdat"] = current.invoiceDate
			row["invcus"] = current.customerNumber
			row["invlin"] = int64(lineNum)
			batch.Details = append(batch.Details, row)

		case PurchaseOrder:
			row, ok := d.Decode(line, recordType)
			if !ok {
				continue
			}
			batch.PurchaseOrders = append(batch.PurchaseOrders, row)
		}
	}

	if err := scanner.Err(); err != nil {
		return batch, fmt.Errorf("failed to read data: %w", err)
	}
	return batch, nil
}

// DecodeFile decodes the data file at path.
func (d *Decoder) DecodeFile(path string) (*Batch, error) {
	// #nosec G304 - files come from the branch work directory
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	defer f.Close()

	batch, err := d.DecodeStream(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return batch, nil
}

// headerContext carries header identifiers down to detail lines.
type headerContext struct {
	invoiceNumber  any
	invoiceDate    any
	customerNumber any
}

func newHeaderContext(row Row) *headerContext {
	return &headerContext{
		invoiceNumber:  valueOr(row, "ivhnum", ""),
		invoiceDate:    valueOr(row, "ivhdat", ""),
		customerNumber: valueOr(row, "ivhcus", int64(0)),
	}
}

func valueOr(row Row, key string, def any) any {
	if v, ok := row[key]; ok {
		return v
	}
	return def
}
