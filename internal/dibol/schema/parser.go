package schema

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

const (
	recordKeyword = "RECORD"
	commentMarker = ";"
)

var (
	// typeSpecPattern matches "A6", "D1", "X30" and the counted form "254D1".
	typeSpecPattern = regexp.MustCompile(`^(\d*)([ADX])(\d+)`)
	positionPattern = regexp.MustCompile(`(\d{3})-(\d{3})`)
	deviceNoPattern = regexp.MustCompile(`DEVNO=(\d+)`)
)

// ParseFile reads a definition file from disk and parses it.
// Only I/O failures are reported; syntax problems are skipped by Parse.
func ParseFile(path string) ([]Record, error) {
	// #nosec G304 - path comes from configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}
	return Parse(string(data)), nil
}

// Parse converts DIBOL definition text into record layouts, in declaration
// order. It never fails: lines it cannot interpret are ignored and records
// that end up without fields are dropped.
func Parse(text string) []Record {
	var (
		out  []Record
		open *Record
	)
	for _, line := range strings.Split(text, "\n") {
		out, open = parseLine(out, open, line)
	}
	return closeRecord(out, open)
}

// parseLine folds one line into the output and the record being built.
func parseLine(out []Record, open *Record, line string) ([]Record, *Record) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, commentMarker) {
		return out, open
	}

	code, comment, _ := strings.Cut(line, commentMarker)
	comment = strings.TrimSpace(comment)

	switch {
	case strings.HasPrefix(strings.TrimSpace(code), recordKeyword):
		return parseRecordLine(out, open, code, comment)

	// Field declarations are indented; anything else at column 1 that is
	// not a RECORD line (PROC, directives, ...) is ignored.
	case strings.HasPrefix(code, "\t") || strings.HasPrefix(code, " "):
		if open == nil {
			return out, open
		}
		if field, ok := parseFieldLine(code, comment); ok {
			open.Fields = append(open.Fields, field)
		}
	}

	return out, open
}

// parseRecordLine handles "RECORD name", "RECORD name,X" and "RECORD,X".
func parseRecordLine(out []Record, open *Record, code, comment string) ([]Record, *Record) {
	parts := strings.Fields(strings.TrimSpace(code))

	if len(parts) >= 2 {
		out = closeRecord(out, open)
		return out, &Record{
			Name:      strings.TrimRight(parts[1], ","),
			IsOverlay: strings.Contains(code, ",X") || strings.Contains(code, ", X"),
			DeviceNo:  parseDeviceNo(comment),
		}
	}

	// A nameless overlay continues the current record.
	if open != nil && (strings.Contains(code, "RECORD,X") || strings.Contains(code, "RECORD, X")) {
		open.IsOverlay = true
	}
	return out, open
}

// parseFieldLine parses "NAME ,A6" style declarations. The comment supplies
// the column range and free text.
func parseFieldLine(code, comment string) (Field, bool) {
	name, spec, found := strings.Cut(strings.TrimSpace(code), ",")
	if !found {
		return Field{}, false
	}
	name = strings.TrimSpace(name)

	m := typeSpecPattern.FindStringSubmatch(strings.TrimSpace(spec))
	if m == nil {
		return Field{}, false
	}

	fieldType := FieldType(m[2][0])
	trailing, err := strconv.Atoi(m[3])
	if err != nil {
		return Field{}, false
	}

	length, decimals := trailing, 0
	if m[1] != "" {
		length, err = strconv.Atoi(m[1])
		if err != nil {
			return Field{}, false
		}
		if fieldType == Decimal {
			decimals = trailing
		}
	}

	start, end := parsePositions(comment)
	if name == "" {
		name = fillerName(start, end)
	}

	return Field{
		Name:     name,
		Type:     fieldType,
		Length:   length,
		Decimals: decimals,
		Start:    start,
		End:      end,
		Comment:  strings.TrimSpace(positionPattern.ReplaceAllString(comment, "")),
	}, true
}

// parsePositions extracts the first NNN-NNN range of a comment.
func parsePositions(comment string) (int, int) {
	m := positionPattern.FindStringSubmatch(comment)
	if m == nil {
		return 0, 0
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	return start, end
}

func parseDeviceNo(comment string) *int {
	m := deviceNoPattern.FindStringSubmatch(comment)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}

func fillerName(start, end int) string {
	if start == 0 {
		return "FILLER"
	}
	return fmt.Sprintf("FILLER_%d_%d", start, end)
}

// closeRecord appends the open record when it has at least one field.
func closeRecord(out []Record, open *Record) []Record {
	if open == nil || len(open.Fields) == 0 {
		return out
	}
	return append(out, *open)
}
