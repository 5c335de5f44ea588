package pfm

import "io/fs"

type readConfig struct {
	limits Limits
}

type ReadOption func(*readConfig)

func WithReadLimits(l Limits) ReadOption {
	return func(c *readConfig) { c.limits = l }
}

type writeConfig struct {
	limits   Limits
	fileMode fs.FileMode
}

type WriteOption func(*writeConfig)

func WithWriteLimits(l Limits) WriteOption {
	return func(c *writeConfig) { c.limits = l }
}

// WithFileMode overrides the permissions WriteFile and CreateStream
// set on the output file. The mode is always set explicitly; the
// process umask default is never inherited.
func WithFileMode(mode fs.FileMode) WriteOption {
	return func(c *writeConfig) { c.fileMode = mode }
}

func newReadConfig(opts []ReadOption) readConfig {
	cfg := readConfig{limits: defaultLimits()}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.limits = cfg.limits.withDefaults()
	return cfg
}

func newWriteConfig(opts []WriteOption) writeConfig {
	cfg := writeConfig{limits: defaultLimits(), fileMode: 0o600}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.limits = cfg.limits.withDefaults()
	if cfg.fileMode == 0 {
		cfg.fileMode = 0o600
	}
	return cfg
}
