package telemetry

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"

	otelpyroscope "github.com/grafana/otel-profiling-go"
	"github.com/grafana/pyroscope-go"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// ProfilerConfig holds Pyroscope continuous profiling configuration.
type ProfilerConfig struct {
	Enabled         bool
	ServerAddress   string
	ApplicationName string
	ProfileMutex    bool
	ProfileBlock    bool
}

// Profiler wraps the Pyroscope profiler with lifecycle management.
type Profiler struct {
	profiler *pyroscope.Profiler
	logger   *zap.Logger
	mu       sync.Mutex
	stopped  bool
}

// NewProfiler starts continuous profiling. Disabled config yields a no-op profiler.
func NewProfiler(cfg ProfilerConfig, logger *zap.Logger) (*Profiler, error) {
	p := &Profiler{logger: logger}
	if !cfg.Enabled {
		return p, nil
	}
	if cfg.ServerAddress == "" || cfg.ApplicationName == "" {
		return nil, fmt.Errorf("profiler server address and application name are required")
	}

	types := []pyroscope.ProfileType{
		pyroscope.ProfileCPU,
		pyroscope.ProfileAllocObjects,
		pyroscope.ProfileAllocSpace,
		pyroscope.ProfileInuseObjects,
		pyroscope.ProfileInuseSpace,
		pyroscope.ProfileGoroutines,
	}
	if cfg.ProfileMutex {
		runtime.SetMutexProfileFraction(5)
		types = append(types, pyroscope.ProfileMutexCount, pyroscope.ProfileMutexDuration)
	}
	if cfg.ProfileBlock {
		runtime.SetBlockProfileRate(5)
		types = append(types, pyroscope.ProfileBlockCount, pyroscope.ProfileBlockDuration)
	}

	tags := map[string]string{}
	if hostname, err := os.Hostname(); err == nil {
		tags["hostname"] = hostname
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ApplicationName,
		ServerAddress:   cfg.ServerAddress,
		Logger:          pyroscopeLogger{logger.Named("pyroscope").Sugar()},
		Tags:            tags,
		ProfileTypes:    types,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start Pyroscope profiler: %w", err)
	}
	p.profiler = profiler

	// link CPU samples to the span that was running
	otel.SetTracerProvider(otelpyroscope.NewTracerProvider(otel.GetTracerProvider()))

	logger.Info("Pyroscope profiler started",
		zap.String("server_address", cfg.ServerAddress),
		zap.String("application_name", cfg.ApplicationName),
		zap.Int("profile_types", len(types)),
	)
	return p, nil
}

// IsEnabled returns whether profiles are being collected.
func (p *Profiler) IsEnabled() bool {
	return p.profiler != nil
}

// Stop flushes pending profiles. Safe to call more than once.
func (p *Profiler) Stop(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || p.profiler == nil {
		p.stopped = true
		return nil
	}
	p.stopped = true
	if err := p.profiler.Stop(); err != nil {
		return fmt.Errorf("failed to stop profiler: %w", err)
	}
	return nil
}

// WithProfilingLabels runs fn with pprof labels attached, so samples taken
// inside fn can be filtered by label.
func WithProfilingLabels(ctx context.Context, fn func(context.Context), kv ...string) {
	if len(kv) < 2 || len(kv)%2 != 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(kv...), fn)
}

type pyroscopeLogger struct {
	s *zap.SugaredLogger
}

func (l pyroscopeLogger) Infof(format string, args ...any)  { l.s.Infof(format, args...) }
func (l pyroscopeLogger) Debugf(format string, args ...any) { l.s.Debugf(format, args...) }
func (l pyroscopeLogger) Errorf(format string, args ...any) { l.s.Errorf(format, args...) }
