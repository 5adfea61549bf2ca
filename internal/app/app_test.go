package app

import (
	"context"
	"testing"

	"github.com/civiq/civiq/internal/config"
	"github.com/civiq/civiq/internal/log"
)

func TestApp_Close(t *testing.T) {
	tests := []struct {
		name     string
		setupApp func() *App
	}{
		{
			name: "close with cancel function",
			setupApp: func() *App {
				_, cancel := context.WithCancel(context.Background())
				return &App{cancel: cancel, logger: log.NewNop()}
			},
		},
		{
			name: "close with cleanup functions",
			setupApp: func() *App {
				return &App{
					logger:      log.NewNop(),
					otelCleanup: func() {},
					dbCleanup:   func() {},
				}
			},
		},
		{
			name:     "close empty app",
			setupApp: func() *App { return &App{logger: log.NewNop()} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := tt.setupApp()
			if err := a.Close(); err != nil {
				t.Errorf("Close error: %v", err)
			}
			// Close is idempotent on a closed App.
			if err := a.Close(); err != nil {
				t.Errorf("second Close error: %v", err)
			}
		})
	}
}

func TestApp_CloseTracksCleanupOrder(t *testing.T) {
	var order []string
	a := &App{
		logger:      log.NewNop(),
		dbCleanup:   func() { order = append(order, "db") },
		otelCleanup: func() { order = append(order, "otel") },
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if len(order) != 2 || order[0] != "db" || order[1] != "otel" {
		t.Errorf("cleanup order = %v, want [db otel]", order)
	}
}

func TestSetup_NilConfig(t *testing.T) {
	if _, err := Setup(context.Background(), nil, log.NewNop()); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestSetup_ConfigValidation(t *testing.T) {
	// Setup expects an already validated config; a zero-value config must
	// still fail fast at the first dependency rather than panic.
	cfg := &config.Config{}
	if _, err := Setup(context.Background(), cfg, log.NewNop()); err == nil {
		t.Fatal("expected error for zero-value config")
	}
}
