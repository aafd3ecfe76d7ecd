package model

import (
	"fmt"
	"sort"
	"time"
)

// HostRecord is the denormalized status of a tracked host.
// Hostname is the unique key; the other fields come from the status probe.
type HostRecord struct {
	Hostname       string `json:"hostname" yaml:"hostname"`
	IP             string `json:"ip" yaml:"ip"`
	NetworkWatcher string `json:"network_watcher" yaml:"network_watcher"`
	SRTStreamer    string `json:"srt_streamer" yaml:"srt_streamer"`
}

// Online reports whether the host has received at least one status response.
func (h HostRecord) Online() bool {
	return h.IP != ""
}

// Placeholder returns a record with every field empty except the hostname.
func Placeholder(hostname string) HostRecord {
	return HostRecord{Hostname: hostname}
}

// FilterState selects which hosts are visible.
type FilterState string

const (
	FilterAll     FilterState = "all"
	FilterOnline  FilterState = "online"
	FilterOffline FilterState = "offline"
)

// ParseFilterState accepts all|online|offline. Empty means all.
func ParseFilterState(value string) (FilterState, error) {
	switch FilterState(value) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterOnline:
		return FilterOnline, nil
	case FilterOffline:
		return FilterOffline, nil
	}
	return "", fmt.Errorf("unknown filter %q (want all|online|offline)", value)
}

// InterfaceRate is the throughput of one network interface.
type InterfaceRate struct {
	InKbps  float64 `json:"in_kbps"`
	OutKbps float64 `json:"out_kbps"`
}

// TelemetrySample maps interface name to its current rates.
type TelemetrySample map[string]InterfaceRate

// Clone returns an independent copy.
func (s TelemetrySample) Clone() TelemetrySample {
	if s == nil {
		return nil
	}
	out := make(TelemetrySample, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Interfaces returns the interface names in sorted order.
func (s TelemetrySample) Interfaces() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ConnectionState is the lifecycle state of a telemetry stream.
type ConnectionState string

const (
	StateIdle       ConnectionState = "idle"
	StateConnecting ConnectionState = "connecting"
	StateOpen       ConnectionState = "open"
	StateError      ConnectionState = "error"
	StateClosed     ConnectionState = "closed"
)

// RateSample is a single logged interface measurement.
type RateSample struct {
	Timestamp time.Time
	Hostname  string
	Interface string
	InKbps    float64
	OutKbps   float64
}
