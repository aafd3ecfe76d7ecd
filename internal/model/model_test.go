package model

import "testing"

func TestParseFilterState(t *testing.T) {
	t.Parallel()

	cases := map[string]FilterState{
		"":        FilterAll,
		"all":     FilterAll,
		"online":  FilterOnline,
		"offline": FilterOffline,
	}
	for in, want := range cases {
		got, err := ParseFilterState(in)
		if err != nil {
			t.Fatalf("ParseFilterState(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseFilterState(%q)=%q want %q", in, got, want)
		}
	}
	if _, err := ParseFilterState("Online"); err == nil {
		t.Fatal("expected error for unknown filter")
	}
}

func TestHostRecord_Online(t *testing.T) {
	t.Parallel()

	if Placeholder("enc-1").Online() {
		t.Fatal("placeholder must be offline")
	}
	if !(HostRecord{Hostname: "enc-1", IP: "10.0.0.1"}).Online() {
		t.Fatal("record with ip must be online")
	}
}

func TestTelemetrySample_CloneAndInterfaces(t *testing.T) {
	t.Parallel()

	s := TelemetrySample{"wlan0": {InKbps: 1}, "eth0": {OutKbps: 2}}
	c := s.Clone()
	c["eth1"] = InterfaceRate{}
	if len(s) != 2 {
		t.Fatalf("clone aliases original: %v", s)
	}
	names := s.Interfaces()
	if len(names) != 2 || names[0] != "eth0" || names[1] != "wlan0" {
		t.Fatalf("names=%v", names)
	}
	if TelemetrySample(nil).Clone() != nil {
		t.Fatal("nil clone must stay nil")
	}
}
