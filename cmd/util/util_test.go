package util

import (
	"testing"
)

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		want     endpointSpec
		wantErr  bool
	}{
		{
			name:     "tcp client",
			endpoint: "tcp://localhost:5760",
			want:     endpointSpec{scheme: "tcp", host: "localhost", port: 5760},
		},
		{
			name:     "tcp listener",
			endpoint: "tcp-l://0.0.0.0:5760",
			want:     endpointSpec{scheme: "tcp-l", host: "0.0.0.0", port: 5760},
		},
		{
			name:     "udp autodetect",
			endpoint: "udp://0.0.0.0:14550",
			want:     endpointSpec{scheme: "udp", host: "0.0.0.0", port: 14550},
		},
		{
			name:     "udp with fixed remote",
			endpoint: "udp://127.0.0.1:0@127.0.0.1:9999",
			want: endpointSpec{
				scheme: "udp", host: "127.0.0.1", port: 0,
				remoteHost: "127.0.0.1", remotePort: 9999,
			},
		},
		{
			name:     "udp empty bind host",
			endpoint: "udp://:14550@gcs:14551",
			want: endpointSpec{
				scheme: "udp", host: "0.0.0.0", port: 14550,
				remoteHost: "gcs", remotePort: 14551,
			},
		},
		{
			name:     "ipv6 bracketed",
			endpoint: "tcp://[::1]:5760",
			want:     endpointSpec{scheme: "tcp", host: "::1", port: 5760},
		},
		{name: "missing scheme", endpoint: "localhost:5760", wantErr: true},
		{name: "unknown scheme", endpoint: "serial://dev:57600", wantErr: true},
		{name: "missing port", endpoint: "tcp://localhost", wantErr: true},
		{name: "bad port", endpoint: "tcp://localhost:notaport", wantErr: true},
		{name: "udp bad remote port", endpoint: "udp://0.0.0.0:0@host:99999", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseEndpoint(tt.endpoint)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseEndpoint(%q) = %+v, want error", tt.endpoint, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseEndpoint(%q): %v", tt.endpoint, err)
			}
			if *got != tt.want {
				t.Errorf("parseEndpoint(%q) = %+v, want %+v", tt.endpoint, *got, tt.want)
			}
		})
	}
}

func TestWrapString(t *testing.T) {
	long := "one two three four five six seven eight nine ten eleven twelve thirteen fourteen"
	wrapped := WrapString(long)

	for i, line := range splitLines(wrapped) {
		if len(line) > Wrap {
			t.Errorf("line %d exceeds wrap width %d: %q", i, Wrap, line)
		}
	}
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	return append(lines, s[start:])
}
