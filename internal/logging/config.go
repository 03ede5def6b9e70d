package logging

// Config contains the configurable items for this package
type Config struct {
	// "dev" for console output at debug level, anything else for JSON at info level
	Environment string `toml:"environment"`
}

// NewDefaultConfig creates an instance of the package-specific configuration.
func NewDefaultConfig() Config {
	return Config{
		Environment: "json",
	}
}
