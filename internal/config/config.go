// Package config handles the parsing and validation of application configuration
// from command-line arguments and environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/blockhaven/statusd/internal/logger"
	"github.com/blockhaven/statusd/internal/vars"
)

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Server    Server        `group:"Server Options" env-namespace:"STATUSD"`
	Probe     Probe         `group:"Probe Options" namespace:"probe" env-namespace:"STATUSD_PROBE"`
	Cache     Cache         `group:"Cache Options" namespace:"cache" env-namespace:"STATUSD_CACHE"`
	RateLimit RateLimit     `group:"Rate Limit Options" namespace:"rate-limit" env-namespace:"STATUSD_RATE_LIMIT"`
	Registry  Registry      `group:"Registry Options" namespace:"db" env-namespace:"STATUSD_DB"`
	GeoIP     GeoIP         `group:"GeoIP Options" namespace:"geoip" env-namespace:"STATUSD_GEOIP"`
	Logger    logger.Config `group:"Logger Options" namespace:"log" env-namespace:"STATUSD_LOG"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
}

// Server holds web server configuration.
type Server struct {
	// betteralign:ignore

	Address    string `short:"l" long:"address" env:"LISTEN_ADDRESS" description:"Server listen address" default:":8080"`
	AuthToken  string `short:"t" long:"auth-token" env:"AUTH_TOKEN" description:"Admin authentication token"`
	TrustProxy bool   `long:"trust-proxy" env:"TRUST_PROXY" description:"Trust X-Forwarded-For headers"`
}

// Probe holds outbound game-server query configuration.
type Probe struct {
	// betteralign:ignore

	Timeout      time.Duration `long:"timeout" env:"TIMEOUT" description:"Query timeout per probe" default:"5s"`
	BufferSize   uint16        `long:"buffer-size" env:"BUFFER_SIZE" description:"UDP response buffer size" default:"1400"`
	MaxPerSecond float64       `long:"max-per-second" env:"MAX_PER_SECOND" description:"Outbound probe rate ceiling" default:"50"`
	Burst        int           `long:"burst" env:"BURST" description:"Outbound probe burst size" default:"100"`
}

// Cache holds status cache TTL configuration.
type Cache struct {
	// betteralign:ignore

	LookupTTL time.Duration `long:"lookup-ttl" env:"LOOKUP_TTL" description:"Freshness window for public lookups" default:"30s"`
	ListTTL   time.Duration `long:"list-ttl" env:"LIST_TTL" description:"Freshness window for the server list" default:"1m"`
}

// RateLimit holds the public endpoint fixed-window limiter configuration.
type RateLimit struct {
	// betteralign:ignore

	Count  int           `long:"count" env:"COUNT" description:"Requests allowed per client per window" default:"10"`
	Window time.Duration `long:"window" env:"WINDOW" description:"Window duration" default:"1m"`
}

// Registry holds the configured-server database settings.
type Registry struct {
	// betteralign:ignore

	Path string `short:"d" long:"path" env:"PATH" description:"Path to SQLite database" default:"statusd.db"`
}

// GeoIP holds MaxMind GeoIP configuration. Country enrichment is disabled
// when Path is empty.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `short:"g" long:"path" env:"PATH" description:"Path to MMDB file (empty disables enrichment)"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"24h"`
}

// Parse reads the configuration from flags and environment variables.
// It terminates the application if the configuration is invalid or if the help flag is invoked.
func Parse() *Config {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	parser.NamespaceDelimiter = "-"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}

	if cfg.Version {
		vars.Print()
		os.Exit(0)
	}

	if cfg.Server.AuthToken == "" {
		fmt.Fprintln(os.Stderr,
			"Required flag `-t, --auth-token' or environment variable `STATUSD_AUTH_TOKEN` was not specified!")
		os.Exit(1)
	}

	return &cfg
}
