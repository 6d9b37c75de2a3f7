// Package debugmon provides periodic runtime monitoring: an env-gated
// background ticker that logs this runtime's queue and detour state.
package debugmon

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"
)

// Enabled returns true if debug mode is active (AUTORUN_DEBUG=1).
func Enabled() bool {
	return os.Getenv("AUTORUN_DEBUG") == "1"
}

// Stats is the snapshot a StatsProvider reports each tick.
type Stats struct {
	MainQueueLen      int
	MainQueueCap      int
	MenuEnvActive     bool
	ClientEnvActive   bool
	DetoursEnabled    int
	DetoursTotal      int
	PluginCount       int
	PluginErrorCount  int
	IPCConnections    int
}

// StatsProvider is implemented by internal/runtime.Runtime. Defined here as
// a narrow interface so this package never imports internal/runtime
// (avoids a dependency cycle since runtime wires debugmon in).
type StatsProvider interface {
	Stats() Stats
}

// Monitor periodically logs runtime statistics when debug mode is enabled.
type Monitor struct {
	provider StatsProvider
	interval time.Duration
	ctx      context.Context
	logger   *zap.Logger
}

// NewMonitor creates a new monitor. If debug mode is not enabled, returns
// nil; callers must nil-check before Start (Start itself also tolerates a
// nil receiver).
func NewMonitor(ctx context.Context, logger *zap.Logger, p StatsProvider) *Monitor {
	if !Enabled() {
		return nil
	}

	return &Monitor{
		provider: p,
		interval: 5 * time.Second,
		ctx:      ctx,
		logger:   logger.Named("debugmon"),
	}
}

// Start begins the monitoring loop in a goroutine.
func (m *Monitor) Start() {
	if m == nil {
		return
	}
	go m.run()
}

func (m *Monitor) run() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("monitor started")

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Info("monitor stopped")
			return
		case <-ticker.C:
			m.logStats()
		}
	}
}

func (m *Monitor) logStats() {
	s := m.provider.Stats()

	m.logger.Info("stats",
		zap.Int("main_queue_len", s.MainQueueLen),
		zap.Int("main_queue_cap", s.MainQueueCap),
		zap.Bool("menu_env_active", s.MenuEnvActive),
		zap.Bool("client_env_active", s.ClientEnvActive),
		zap.Int("detours_enabled", s.DetoursEnabled),
		zap.Int("detours_total", s.DetoursTotal),
		zap.Int("plugin_count", s.PluginCount),
		zap.Int("plugin_error_count", s.PluginErrorCount),
		zap.Int("ipc_connections", s.IPCConnections),
	)
}
