package metrics

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hostwatch/internal/model"
)

func TestAppendCSV_WritesHeaderOnce(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	path := filepath.Join(tmp, "logs", "telemetry.csv")

	m1 := model.RateSample{Timestamp: time.Unix(1, 0).UTC(), Hostname: "enc-1", Interface: "eth0", InKbps: 100}
	m2 := model.RateSample{Timestamp: time.Unix(2, 0).UTC(), Hostname: "enc-1", Interface: "eth1", OutKbps: 50}

	if err := AppendCSV(path, []model.RateSample{m1}); err != nil {
		t.Fatalf("AppendCSV #1: %v", err)
	}
	if err := AppendCSV(path, []model.RateSample{m2}); err != nil {
		t.Fatalf("AppendCSV #2: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines=%d\n%s", len(lines), string(data))
	}
	if lines[0] != "timestamp,hostname,interface,in_kbps,out_kbps" {
		t.Fatalf("header=%q", lines[0])
	}

	items, err := ReadCSV(path)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(items) != 2 || items[0] != m1 || items[1] != m2 {
		t.Fatalf("items=%+v", items)
	}
}

func TestWriteCSV_ReadBack(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	sample := model.TelemetrySample{
		"wlan0": {InKbps: 1.5, OutKbps: 2.25},
		"eth0":  {InKbps: 10, OutKbps: 20},
	}
	items := Samples(ts, "enc-1:8080", sample)
	if len(items) != 2 || items[0].Interface != "eth0" || items[1].Interface != "wlan0" {
		t.Fatalf("samples not sorted: %+v", items)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, items); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	got, err := readCSV(&buf)
	if err != nil {
		t.Fatalf("readCSV: %v", err)
	}
	if len(got) != 2 || got[1] != items[1] {
		t.Fatalf("got=%+v", got)
	}
}

func TestReadCSV_RejectsShortRecord(t *testing.T) {
	t.Parallel()

	_, err := readCSV(strings.NewReader("timestamp,hostname,interface,in_kbps,out_kbps\n2026-01-01T00:00:00Z,enc-1\n"))
	if err == nil {
		t.Fatal("expected error")
	}
}
