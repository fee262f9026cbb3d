// utils/csv.go - flat-row CSV helpers for the admin export endpoints
package utils

import (
	"bytes"
	"encoding/csv"
	"time"
)

// BuildCSV renders a header row plus data rows. encoding/csv quotes fields and
// doubles embedded quotes, which is exactly the escaping the exports need.
func BuildCSV(headers []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(headers); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// YesNo renders a consent flag for export rows.
func YesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// CSVTime renders a timestamp for export rows, empty when unset.
func CSVTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
