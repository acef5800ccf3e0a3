package main

import "testing"

func TestNewLogger(t *testing.T) {
	tests := []struct {
		format, level string
		wantErr       bool
	}{
		{"text", "info", false},
		{"json", "debug", false},
		{"json", "WARN", false},
		{"xml", "info", true},
		{"text", "loud", true},
	}
	for _, tt := range tests {
		t.Run(tt.format+"/"+tt.level, func(t *testing.T) {
			logger, err := newLogger(tt.format, tt.level)
			if (err != nil) != tt.wantErr {
				t.Fatalf("newLogger() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && logger == nil {
				t.Error("nil logger")
			}
		})
	}
}

func TestRootCommands(t *testing.T) {
	for _, path := range [][]string{
		{"serve"},
		{"version"},
		{"config", "init"},
		{"config", "show"},
		{"api", "jobs", "submit"},
		{"api", "cache", "stats"},
	} {
		cmd, _, err := rootCmd.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Errorf("command %v not found: %v", path, err)
		}
	}
}
