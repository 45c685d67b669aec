package sandbox

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/config"
)

// NewExecutor creates an appropriate sandbox executor based on the configuration
func NewExecutor(logger *zap.Logger, cfg *config.Config) (SandboxExecutor, error) {
	executorConfig := Config{
		Image:          cfg.Sandbox.Image,
		RunnerCommand:  cfg.Sandbox.RunnerCommand,
		RunnerPath:     cfg.Sandbox.RunnerPath,
		MaxOutputBytes: cfg.GetMaxOutputBytes(),
		KillGrace:      cfg.GetKillGrace(),
	}

	switch cfg.Sandbox.Backend {
	case "docker":
		return NewDockerExecutor(logger, &executorConfig), nil
	case "podman":
		return NewPodmanExecutor(logger, &executorConfig), nil
	case "local":
		if !cfg.Sandbox.EnableLocalBackend {
			return nil, fmt.Errorf("local backend requires sandbox.enable_local_backend")
		}
		logger.Warn("local sandbox backend enabled, demos run without isolation")
		return NewLocalExecutor(logger, &executorConfig, cfg.Sandbox.RunnerEnv), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Sandbox.Backend)
	}
}
