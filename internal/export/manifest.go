package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
)

var csvHeader = []string{"index", "start_ms", "end_ms", "length_ms", "output_path", "source_file"}

func encodeCSV(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		row := []string{
			strconv.Itoa(r.Index),
			formatMs(r.StartMs),
			formatMs(r.EndMs),
			formatMs(r.LengthMs),
			r.OutputPath,
			r.SourceFile,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row %d: %w", r.Index, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeJSON(records []Record) ([]byte, error) {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return data, nil
}

// formatMs renders millisecond values without trailing float noise.
func formatMs(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
