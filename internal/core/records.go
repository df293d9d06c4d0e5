package core

import "strings"

// RecordsFromTable turns a header row and a value matrix into records.
// Short rows are padded with empty cells, extra cells beyond the header
// are ignored and fully blank rows are skipped. A missing, blank or
// duplicated header means the source is not a table.
func RecordsFromTable(header []string, rows [][]string) ([]RawRecord, error) {
	names := make([]string, len(header))
	seen := make(map[string]struct{}, len(header))
	usable := 0
	for i, h := range header {
		name := strings.TrimSpace(h)
		names[i] = name
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			return nil, &SchemaError{Reason: "duplicate header " + `"` + name + `"`}
		}
		seen[name] = struct{}{}
		usable++
	}
	if usable == 0 {
		return nil, &SchemaError{Reason: "no header row"}
	}

	out := make([]RawRecord, 0, len(rows))
	for _, row := range rows {
		if isBlankRow(row) {
			continue
		}
		rec := make(RawRecord, usable)
		for i, name := range names {
			if name == "" {
				continue
			}
			if i < len(row) {
				rec[name] = row[i]
			} else {
				rec[name] = ""
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
