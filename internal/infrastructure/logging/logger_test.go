package logging

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{"development", &Config{Level: "debug", Env: "development"}, false},
		{"production to file", &Config{Level: "warn", Env: "production", FilePath: filepath.Join(t.TempDir(), "app.log")}, false},
		{"unknown level", &Config{Level: "verbose", Env: "development"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewLogger() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && logger == nil {
				t.Fatal("NewLogger() returned nil logger")
			}
		})
	}
}

func TestContextLogger(t *testing.T) {
	if ExtractLoggerFromContext(context.Background()) == nil {
		t.Fatal("expected no-op logger for empty context")
	}
	logger := zap.NewExample()
	ctx := SetLoggerInContext(context.Background(), logger)
	if got := ExtractLoggerFromContext(ctx); got != logger {
		t.Fatal("logger not carried by context")
	}
}
