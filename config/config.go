// Package config loads the YAML configuration of a graph and builds the
// logger, the decorated driver and the graph it describes.
//
//	neo4j:
//	  uri: neo4j://localhost:7687
//	  username: neo4j
//	  password: secret
//	log:
//	  level: debug
//	  pretty: true
//	driver:
//	  debug: true
//	  slow_threshold: 200ms
//	  metrics: true
//	cache:
//	  enabled: true
//	  ttl: 1m
//
// The VELOGRAPH_* environment variables override the file.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	neo4jdriver "github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/syssam/velograph"
	"github.com/syssam/velograph/dialect"
	"github.com/syssam/velograph/dialect/neo4j"
)

// Environment variables overriding the file.
const (
	EnvURI      = "VELOGRAPH_NEO4J_URI"
	EnvUsername = "VELOGRAPH_NEO4J_USERNAME"
	EnvPassword = "VELOGRAPH_NEO4J_PASSWORD"
	EnvDatabase = "VELOGRAPH_NEO4J_DATABASE"
	EnvLogLevel = "VELOGRAPH_LOG_LEVEL"
)

// Config is the configuration of a graph.
type Config struct {
	Neo4j  Neo4j  `yaml:"neo4j"`
	Log    Log    `yaml:"log"`
	Driver Driver `yaml:"driver"`
	Cache  Cache  `yaml:"cache"`
}

// Neo4j holds the connection settings.
type Neo4j struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	// MaxConnectionPoolSize is the Bolt driver default when zero.
	MaxConnectionPoolSize int `yaml:"max_connection_pool_size"`
	// AcquisitionTimeout is the Bolt driver default when zero.
	AcquisitionTimeout time.Duration `yaml:"acquisition_timeout"`
}

// Log holds the logger settings.
type Log struct {
	Level      string    `yaml:"level"` // debug, info, warn, error
	Pretty     bool      `yaml:"pretty"`
	WithCaller bool      `yaml:"with_caller"`
	Output     io.Writer `yaml:"-"` // os.Stdout when nil
}

// Driver selects the decorators wrapping the connection.
type Driver struct {
	// Debug logs every statement at debug level.
	Debug bool `yaml:"debug"`
	// SlowThreshold enables statement statistics and logs the statements
	// slower than it.
	SlowThreshold time.Duration `yaml:"slow_threshold"`
	// Metrics exports Prometheus metrics.
	Metrics bool `yaml:"metrics"`
}

// Cache configures the default node cache of the models.
type Cache struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

// Default returns the configuration used for the settings a file omits.
func Default() *Config {
	return &Config{
		Neo4j: Neo4j{URI: "neo4j://localhost:7687"},
		Log:   Log{Level: "info"},
	}
}

// Load reads the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML configuration, applies the environment overrides and
// validates the result.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	c.ApplyEnv(os.LookupEnv)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyEnv overrides the settings whose variable is set in lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	for env, dst := range map[string]*string{
		EnvURI:      &c.Neo4j.URI,
		EnvUsername: &c.Neo4j.Username,
		EnvPassword: &c.Neo4j.Password,
		EnvDatabase: &c.Neo4j.Database,
		EnvLogLevel: &c.Log.Level,
	} {
		if v, ok := lookup(env); ok {
			*dst = v
		}
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Neo4j.URI == "" {
		return errors.New("config: neo4j.uri is required")
	}
	if _, err := level(c.Log.Level); err != nil {
		return err
	}
	if c.Driver.SlowThreshold < 0 || c.Cache.TTL < 0 {
		return errors.New("config: durations must not be negative")
	}
	return nil
}

func level(s string) (zerolog.Level, error) {
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	l, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("config: log.level: %w", err)
	}
	return l, nil
}

// NewLogger builds the logger described by cfg. An invalid level falls back
// to info.
func NewLogger(cfg Log) zerolog.Logger {
	lvl, err := level(cfg.Level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}
	ctx := zerolog.New(output).Level(lvl).With().Timestamp().Str("service", "velograph")
	if cfg.WithCaller {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// Decorate wraps drv with the decorators selected in the configuration,
// innermost first: statistics, metrics, debug logging. Metrics are
// registered with reg, or the default registerer when nil.
func (c *Config) Decorate(drv dialect.Driver, logger zerolog.Logger, reg prometheus.Registerer) dialect.Driver {
	if c.Driver.SlowThreshold > 0 {
		drv = dialect.NewStatsDriver(drv,
			dialect.WithSlowThreshold(c.Driver.SlowThreshold),
			dialect.WithSlowQueryLog(logger),
		)
	}
	if c.Driver.Metrics {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		drv = dialect.NewMetricsDriver(drv, dialect.NewMetrics(reg))
	}
	if c.Driver.Debug {
		drv = dialect.Debug(drv, logger)
	}
	return drv
}

// NewGraph returns a graph over drv, decorated and configured with the
// logger and the cache of the configuration.
func (c *Config) NewGraph(drv dialect.Driver, logger zerolog.Logger, reg prometheus.Registerer) *velograph.Graph {
	opts := []velograph.Option{velograph.Log(logger)}
	if c.Cache.Enabled {
		opts = append(opts, velograph.WithCache(velograph.NewMemoryCache(), c.Cache.TTL))
	}
	return velograph.NewGraph(c.Decorate(drv, logger, reg), opts...)
}

// Open connects to Neo4j and returns the configured graph.
func (c *Config) Open(ctx context.Context, reg prometheus.Registerer) (*velograph.Graph, error) {
	logger := NewLogger(c.Log)
	opts := []neo4j.Option{neo4j.Log(logger)}
	if c.Neo4j.Username != "" {
		opts = append(opts, neo4j.BasicAuth(c.Neo4j.Username, c.Neo4j.Password))
	}
	if c.Neo4j.Database != "" {
		opts = append(opts, neo4j.Database(c.Neo4j.Database))
	}
	if n, d := c.Neo4j.MaxConnectionPoolSize, c.Neo4j.AcquisitionTimeout; n > 0 || d > 0 {
		opts = append(opts, neo4j.Config(func(cfg *neo4jdriver.Config) {
			if n > 0 {
				cfg.MaxConnectionPoolSize = n
			}
			if d > 0 {
				cfg.ConnectionAcquisitionTimeout = d
			}
		}))
	}
	drv, err := neo4j.Open(ctx, c.Neo4j.URI, opts...)
	if err != nil {
		return nil, err
	}
	logger.Info().
		Str("component", "config").
		Str("uri", c.Neo4j.URI).
		Str("database", c.Neo4j.Database).
		Msg("connected")
	return c.NewGraph(drv, logger, reg), nil
}
