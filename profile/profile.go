package profile

// Stopper ends an active profiling session.
type Stopper interface{ Stop() }

// Config selects a profiling mode and output directory.
type Config struct {
	Mode  string
	Path  string
	Quiet bool
}

// Option modifies a [Config].
type Option func(Config) Config

// Make returns a Config with opts applied.
func Make(opts ...Option) Config {
	var c Config

	for _, opt := range opts {
		c = opt(c)
	}

	return c
}

// WithMode sets the profiling mode. See [Modes].
func WithMode(mode string) Option {
	return func(c Config) Config {
		c.Mode = mode

		return c
	}
}

// WithPath sets the directory profiles are written to.
func WithPath(path string) Option {
	return func(c Config) Config {
		c.Path = path

		return c
	}
}

// WithQuiet suppresses the profiler's own log output.
func WithQuiet(quiet bool) Option {
	return func(c Config) Config {
		c.Quiet = quiet

		return c
	}
}

// Start begins profiling. An empty or unsupported mode, or a binary built
// without the pprof tag, yields a no-op Stopper. Both Start and Stop are
// always safe to call.
func (c Config) Start() Stopper {
	if c.Mode == "" {
		return ignore{}
	}

	return start(c)
}

type ignore struct{}

func (ignore) Stop() {}
