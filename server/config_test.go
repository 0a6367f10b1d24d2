//go:build linux
// +build linux

package server

import "testing"

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("unexpected default ListenAddr: %q", cfg.ListenAddr)
	}
	if cfg.RingCapacity != DefaultRingCapacity {
		t.Fatalf("unexpected default RingCapacity: %d", cfg.RingCapacity)
	}
	if !cfg.CPUAffinity {
		t.Fatalf("expected CPUAffinity to default to true")
	}
}

func TestServerOptionsOverrideDefaults(t *testing.T) {
	cfg := DefaultConfig()
	WithListenAddr(":9191")(cfg)
	WithWorkers(2)(cfg)
	WithRingCapacity(4096)(cfg)
	WithCPUAffinity(false)(cfg)

	if cfg.ListenAddr != ":9191" {
		t.Fatalf("WithListenAddr not applied: %q", cfg.ListenAddr)
	}
	if cfg.Workers != 2 {
		t.Fatalf("WithWorkers not applied: %d", cfg.Workers)
	}
	if cfg.RingCapacity != 4096 {
		t.Fatalf("WithRingCapacity not applied: %d", cfg.RingCapacity)
	}
	if cfg.CPUAffinity {
		t.Fatalf("WithCPUAffinity(false) not applied")
	}
}

func TestParsePort(t *testing.T) {
	cases := []struct {
		addr    string
		want    int
		wantErr bool
	}{
		{":8080", 8080, false},
		{":1", 1, false},
		{":65535", 65535, false},
		{":0", 0, false},
		{":70000", 0, true},
		{"noport", 0, true},
		{":abc", 0, true},
	}
	for _, tc := range cases {
		got, err := parsePort(tc.addr)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parsePort(%q): expected error, got %d", tc.addr, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parsePort(%q): unexpected error: %v", tc.addr, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parsePort(%q) = %d, want %d", tc.addr, got, tc.want)
		}
	}
}
