package sandbox

import "go.uber.org/zap"

// Option configures an executor
type Option func(*options)

type options struct {
	cmdRunner CommandRunner
	fs        FileSystem
}

// WithCommandRunner sets the CommandRunner used to launch processes
func WithCommandRunner(cmdRunner CommandRunner) Option {
	return func(o *options) {
		o.cmdRunner = cmdRunner
	}
}

// WithFileSystem sets the FileSystem used for scratch directories
func WithFileSystem(fs FileSystem) Option {
	return func(o *options) {
		o.fs = fs
	}
}

func applyOptions(opts []Option) options {
	o := options{
		cmdRunner: &RealCommandRunner{},
		fs:        &RealFileSystem{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewDockerExecutor creates a ContainerExecutor driving the docker CLI
func NewDockerExecutor(logger *zap.Logger, config *Config, opts ...Option) *ContainerExecutor {
	return newContainerExecutor("docker", logger, config, opts...)
}
