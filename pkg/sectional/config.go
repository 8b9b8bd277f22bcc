package sectional

type Config struct {
	DBPath     string
	TempDir    string
	SampleRate int
	Logger     Logger
	Storage    Storage
	Presets    map[string]Preset
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

func WithSampleRate(rate int) Option {
	return func(c *Config) {
		c.SampleRate = rate
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

// WithStorage enables result caching through the given store. Without it the
// engine keeps no state between calls.
func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

// WithPresets replaces the built-in preset table. The table must contain a
// "default" entry and every preset must validate.
func WithPresets(presets map[string]Preset) Option {
	return func(c *Config) {
		c.Presets = presets
	}
}

// WithPreset adds or replaces a single entry in the preset table.
func WithPreset(key string, p Preset) Option {
	return func(c *Config) {
		if c.Presets == nil {
			c.Presets = DefaultPresets()
		}
		c.Presets[key] = p
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:     "",
		TempDir:    "/tmp",
		SampleRate: 22050,
		Logger:     nil,
		Presets:    DefaultPresets(),
	}
}
