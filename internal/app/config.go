package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/storefront-sync/internal/storefront"
	"github.com/xenking/storefront-sync/pkg/retry"
)

// Config holds the daemon configuration, loadable from environment variables
// (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr     string `default:"0.0.0.0:8081" usage:"Probe listener address"`
	API      APIConfig
	Cache    storefront.CacheConfig
	Retry    retry.Policy
	Sync     SyncConfig
	Graceful GracefulConfig
}

// APIConfig points the remote client at the storefront backend.
type APIConfig struct {
	BaseURL   string        `usage:"Backend base URL, e.g. https://shop.example.com/api (STOREFRONT_API_URL or API_URL)" flag:"api-url"`
	Timeout   time.Duration `default:"30s" usage:"Per-request timeout"`
	RateLimit RateLimitConfig
}

// RateLimitConfig is the client-side request budget per backend host.
type RateLimitConfig struct {
	Max    int           `default:"50" usage:"Max outgoing requests per window (0 disables)"`
	Window time.Duration `default:"1s" usage:"Rate limit window duration"`
}

// SyncConfig controls the background warm loop.
type SyncConfig struct {
	Interval time.Duration `default:"1m" usage:"How often taxonomy and collections are refreshed"`
	// MaxAge is how long readiness tolerates failing refreshes. Zero means
	// three intervals.
	MaxAge time.Duration `usage:"Max age of the last successful refresh before not ready"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML config
// files, then applies platform defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix:        "STOREFRONT",
		// STOREFRONT_API_URL is read by applyPlatformDefaults.
		AllowUnknownEnvs: true,
		Files:            []string{"storefront.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps commonly used environment variable names to the
// STOREFRONT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.API.BaseURL == "" {
		for _, name := range []string{"STOREFRONT_API_URL", "API_URL"} {
			if v := os.Getenv(name); v != "" {
				c.API.BaseURL = v
				break
			}
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8081" {
		c.Addr = "0.0.0.0:" + port
	}
	if c.Sync.MaxAge == 0 {
		c.Sync.MaxAge = 3 * c.Sync.Interval
	}
}

func (c *Config) validate() error {
	switch {
	case c.API.BaseURL == "":
		return errors.New("API base URL is required: set STOREFRONT_API_URL or API_URL")
	case c.Sync.Interval <= 0:
		return errors.Errorf("sync interval must be positive, got %s", c.Sync.Interval)
	case c.Retry.MaxAttempts < 1:
		return errors.Errorf("retry attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	return nil
}
