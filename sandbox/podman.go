package sandbox

import "go.uber.org/zap"

// NewPodmanExecutor creates a ContainerExecutor driving the podman CLI.
// Podman accepts the same run flags as docker for everything the Policy
// expresses.
func NewPodmanExecutor(logger *zap.Logger, config *Config, opts ...Option) *ContainerExecutor {
	return newContainerExecutor("podman", logger, config, opts...)
}
