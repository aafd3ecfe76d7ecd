// Package metrics records telemetry samples as CSV and summarizes them.
package metrics

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"hostwatch/internal/model"
)

var header = []string{
	"timestamp",
	"hostname",
	"interface",
	"in_kbps",
	"out_kbps",
}

// WriteCSV writes samples to CSV with a fixed column order.
func WriteCSV(w io.Writer, items []model.RateSample) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return err
	}
	if err := writeRecords(writer, items); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

// AppendCSV appends samples to the file at path, creating it with a header
// when it does not exist yet.
func AppendCSV(path string, items []model.RateSample) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	writer := csv.NewWriter(file)
	if info.Size() == 0 {
		if err := writer.Write(header); err != nil {
			return err
		}
	}
	if err := writeRecords(writer, items); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

// Samples flattens one telemetry frame into rows, sorted by interface.
func Samples(ts time.Time, hostname string, sample model.TelemetrySample) []model.RateSample {
	names := sample.Interfaces()
	items := make([]model.RateSample, 0, len(names))
	for _, name := range names {
		rate := sample[name]
		items = append(items, model.RateSample{
			Timestamp: ts,
			Hostname:  hostname,
			Interface: name,
			InKbps:    rate.InKbps,
			OutKbps:   rate.OutKbps,
		})
	}
	return items
}

func writeRecords(writer *csv.Writer, items []model.RateSample) error {
	for _, m := range items {
		record := []string{
			m.Timestamp.UTC().Format(time.RFC3339Nano),
			m.Hostname,
			m.Interface,
			strconv.FormatFloat(m.InKbps, 'f', 3, 64),
			strconv.FormatFloat(m.OutKbps, 'f', 3, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return nil
}
