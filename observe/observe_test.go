package observe

import (
	"context"
	"errors"
	"testing"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{
			name:    "missing service name",
			cfg:     Config{},
			wantErr: ErrMissingServiceName,
		},
		{
			name: "valid minimal",
			cfg:  Config{ServiceName: "artifactops"},
		},
		{
			name: "valid full",
			cfg: Config{
				ServiceName: "artifactops",
				Version:     "1.0.0",
				Tracing:     TracingConfig{Enabled: true, Exporter: "stdout", SamplePct: 0.5},
				Metrics:     MetricsConfig{Enabled: true, Exporter: "prometheus"},
				Logging:     LoggingConfig{Enabled: true, Level: "info"},
			},
		},
		{
			name: "invalid tracing exporter",
			cfg: Config{
				ServiceName: "artifactops",
				Tracing:     TracingConfig{Enabled: true, Exporter: "zipkin"},
			},
			wantErr: ErrInvalidTracingExporter,
		},
		{
			name: "sample pct too high",
			cfg: Config{
				ServiceName: "artifactops",
				Tracing:     TracingConfig{Enabled: true, Exporter: "none", SamplePct: 1.5},
			},
			wantErr: ErrInvalidSamplePct,
		},
		{
			name: "sample pct negative",
			cfg: Config{
				ServiceName: "artifactops",
				Tracing:     TracingConfig{Enabled: true, Exporter: "none", SamplePct: -0.1},
			},
			wantErr: ErrInvalidSamplePct,
		},
		{
			name: "invalid metrics exporter",
			cfg: Config{
				ServiceName: "artifactops",
				Metrics:     MetricsConfig{Enabled: true, Exporter: "statsd"},
			},
			wantErr: ErrInvalidMetricsExporter,
		},
		{
			name: "invalid log level",
			cfg: Config{
				ServiceName: "artifactops",
				Logging:     LoggingConfig{Enabled: true, Level: "verbose"},
			},
			wantErr: ErrInvalidLogLevel,
		},
		{
			name: "disabled subsystems skip validation",
			cfg: Config{
				ServiceName: "artifactops",
				Tracing:     TracingConfig{Enabled: false, Exporter: "zipkin"},
				Metrics:     MetricsConfig{Enabled: false, Exporter: "statsd"},
				Logging:     LoggingConfig{Enabled: false, Level: "verbose"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewObserver_Disabled(t *testing.T) {
	ctx := context.Background()

	obs, err := NewObserver(ctx, Config{ServiceName: "test"})
	if err != nil {
		t.Fatalf("NewObserver: %v", err)
	}
	defer obs.Shutdown(ctx)

	if obs.Tracer() == nil {
		t.Error("Tracer() returned nil")
	}
	if obs.Meter() == nil {
		t.Error("Meter() returned nil")
	}
	if obs.Logger() == nil {
		t.Error("Logger() returned nil")
	}

	// The noop logger must accept all calls without panicking.
	l := obs.Logger()
	l.Info(ctx, "info")
	l.Warn(ctx, "warn")
	l.Error(ctx, "error")
	l.Debug(ctx, "debug")
	if got := l.WithOperation(OperationMeta{Name: "x"}); got == nil {
		t.Error("WithOperation returned nil")
	}
}

func TestNewObserver_InvalidConfig(t *testing.T) {
	_, err := NewObserver(context.Background(), Config{})
	if !errors.Is(err, ErrMissingServiceName) {
		t.Fatalf("NewObserver error = %v, want ErrMissingServiceName", err)
	}
}

func TestObserver_ShutdownIdempotent(t *testing.T) {
	ctx := context.Background()

	obs, err := NewObserver(ctx, Config{
		ServiceName: "test",
		Tracing:     TracingConfig{Enabled: true, Exporter: "none", SamplePct: 1.0},
		Metrics:     MetricsConfig{Enabled: true, Exporter: "none"},
	})
	if err != nil {
		t.Fatalf("NewObserver: %v", err)
	}

	if err := obs.Shutdown(ctx); err != nil {
		t.Fatalf("first Shutdown: %v", err)
	}
	// Second shutdown must not panic; provider errors are acceptable.
	_ = obs.Shutdown(ctx)
}

func TestOperationMeta_SpanName(t *testing.T) {
	meta := OperationMeta{Name: "render-template"}
	if got, want := meta.SpanName(), "op.exec.render-template"; got != want {
		t.Errorf("SpanName() = %q, want %q", got, want)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogLevel_String(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		if got := ParseLogLevel(level).String(); got != level {
			t.Errorf("round trip for %q produced %q", level, got)
		}
	}
	if got := LogLevel(99).String(); got != "info" {
		t.Errorf("unknown level String() = %q, want %q", got, "info")
	}
}

func TestValidExporters_MatchMaps(t *testing.T) {
	for _, name := range ValidTracingExporters {
		if !validTracingExporters[name] {
			t.Errorf("tracing exporter %q listed but not accepted", name)
		}
	}
	for _, name := range ValidMetricsExporters {
		if !validMetricsExporters[name] {
			t.Errorf("metrics exporter %q listed but not accepted", name)
		}
	}
	for _, name := range ValidLogLevels {
		if !validLogLevels[name] {
			t.Errorf("log level %q listed but not accepted", name)
		}
	}
}
