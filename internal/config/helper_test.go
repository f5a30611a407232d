package config

import (
	"strings"
	"testing"
)

func TestValidatePort(t *testing.T) {
	tests := []struct {
		name    string
		port    int
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid port",
			port:    8080,
			wantErr: false,
		},
		{
			name:    "valid port minimum",
			port:    1,
			wantErr: false,
		},
		{
			name:    "valid port maximum",
			port:    65535,
			wantErr: false,
		},
		{
			name:    "invalid port - zero",
			port:    0,
			wantErr: true,
			errMsg:  "port must be between 1 and 65535, got 0",
		},
		{
			name:    "invalid port - too high",
			port:    65536,
			wantErr: true,
			errMsg:  "port must be between 1 and 65535, got 65536",
		},
		{
			name:    "negative port",
			port:    -1,
			wantErr: true,
			errMsg:  "port must be between 1 and 65535, got -1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePort(tt.port)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ValidatePort() expected error but got none")
					return
				}
				if tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("ValidatePort() error = %v, want to contain %v", err.Error(), tt.errMsg)
				}
				return
			}
			if err != nil {
				t.Errorf("ValidatePort() unexpected error: %v", err)
			}
		})
	}
}

func TestValidateHost(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		wantErr bool
	}{
		{
			name:    "valid IPv4",
			host:    "192.0.2.10",
			wantErr: false,
		},
		{
			name:    "valid IPv6",
			host:    "2001:db8::1",
			wantErr: false,
		},
		{
			name:    "valid hostname",
			host:    "collector.example.com",
			wantErr: false,
		},
		{
			name:    "valid single label",
			host:    "localhost",
			wantErr: false,
		},
		{
			name:    "empty host",
			host:    "",
			wantErr: true,
		},
		{
			name:    "hostname with spaces",
			host:    "bad host",
			wantErr: true,
		},
		{
			name:    "hostname leading dash",
			host:    "-bad.example.com",
			wantErr: true,
		},
		{
			name:    "hostname too long",
			host:    strings.Repeat("a", 254),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHost(tt.host)
			if tt.wantErr && err == nil {
				t.Errorf("ValidateHost(%q) expected error but got none", tt.host)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateHost(%q) unexpected error: %v", tt.host, err)
			}
		})
	}
}
