package metrics

import (
	"errors"

	"walletbot/internal/config"

	"github.com/grafana/pyroscope-go"
	"gitlab.com/nevasik7/alerting/logger"
)

var profileTypes = []pyroscope.ProfileType{
	pyroscope.ProfileCPU,
	pyroscope.ProfileAllocSpace,
	pyroscope.ProfileInuseSpace,
	// fetches and replies each run on their own goroutine
	pyroscope.ProfileGoroutines,
}

// InitPProf starts continuous profiling, nil profiler when disabled.
// Profiler messages go through the service logger.
func InitPProf(log logger.Logger, cfg *config.PyroscopeConfig, instanceID string) (*pyroscope.Profiler, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	if cfg.ServerAddr == "" {
		return nil, errors.New("pyroscope server address is required")
	}

	tags := make(map[string]string, len(cfg.Tags)+1)
	for k, v := range cfg.Tags {
		tags[k] = v
	}
	tags["instance"] = instanceID

	appName := cfg.AppName
	if appName == "" {
		appName = "walletbot"
	}

	return pyroscope.Start(pyroscope.Config{
		ApplicationName: appName,
		ServerAddress:   cfg.ServerAddr,
		AuthToken:       cfg.AuthToken,
		Logger:          log,
		Tags:            tags,
		ProfileTypes:    profileTypes,
	})
}
