package project_types

type LogOptions struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max-size-mb"`
	MaxBackups int    `toml:"max-backups"`
	MaxAgeDays int    `toml:"max-age-days"`
	Compress   bool   `toml:"compress"`
}

type ServerOptions struct {
	Port        int    `toml:"port"`
	MetricsPort int    `toml:"metrics-port"`
	JwksURL     string `toml:"jwks-url"`
	RedisAddr   string `toml:"redis-addr"`
	CacheTTLSec int    `toml:"cache-ttl-sec"`
}

type DatabaseOptions struct {
	DSN string `toml:"dsn"`
}

// EngineOptions is the shape of the toml configuration file.
type EngineOptions struct {
	// Resolution is the h3 resolution to convert to, -1 selects it from the
	// pixel size using SearchMode.
	Resolution int    `toml:"resolution"`
	SearchMode string `toml:"search-mode"`
	Compact    bool   `toml:"compact"`
	Workers    int    `toml:"workers"`
	AxisOrder  string `toml:"axis-order"`

	Log      LogOptions      `toml:"log"`
	Server   ServerOptions   `toml:"server"`
	Database DatabaseOptions `toml:"database"`
}

func DefaultOptions() EngineOptions {
	return EngineOptions{
		Resolution: -1,
		SearchMode: "smaller-than-pixel",
		Compact:    true,
		Workers:    0,
		AxisOrder:  "yx",
		Log: LogOptions{
			Level:      "info",
			MaxSizeMB:  64,
			MaxBackups: 4,
			MaxAgeDays: 7,
		},
		Server: ServerOptions{
			Port:        8080,
			MetricsPort: 9090,
			CacheTTLSec: 600,
		},
	}
}
