package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"github.com/sabinquant/hftbt/internal/apperrors"
)

// Config is the root configuration document for a backtester run.
type Config struct {
	Debug       bool              `yaml:"debug"`
	Replay      ReplayConfig      `yaml:"replay"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	DBClient    DBClientConfig    `yaml:"dbclient"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Admin       AdminConfig       `yaml:"admin"`
	Ledger      LedgerConfig      `yaml:"ledger"`
}

// ReplayConfig controls the per-instrument replay driver and its object pools.
type ReplayConfig struct {
	OrderPoolPageSize uint32  `yaml:"order_pool_page_size" validate:"gt=0"`
	LimitPoolPageSize uint32  `yaml:"limit_pool_page_size" validate:"gt=0"`
	HashLoadFactor    float64 `yaml:"hash_load_factor" validate:"gt=0,lt=1"`
}

// TelemetryConfig controls the SPSC rings and file consumer.
type TelemetryConfig struct {
	RingCapacity   int `yaml:"ring_capacity" validate:"gt=0"`
	FileBufferSize int `yaml:"file_buffer_size" validate:"gt=0"`
}

// DBClientConfig controls the reconnecting TCP line-protocol client pool.
type DBClientConfig struct {
	Address        string        `yaml:"address" validate:"required"`
	PoolSize       int           `yaml:"pool_size" validate:"gt=0"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" validate:"gt=0"`
	SendTimeout    time.Duration `yaml:"send_timeout" validate:"gt=0"`
}

// CoordinatorConfig controls the concurrent coordinator's worker pool.
type CoordinatorConfig struct {
	MaxWorkers    int    `yaml:"max_workers" validate:"gt=0"`
	EventsSubject string `yaml:"events_subject" validate:"required"`
	NATSURL       string `yaml:"nats_url"`
}

// AdminConfig controls the read-only HTTP admin surface.
type AdminConfig struct {
	ListenAddr     string   `yaml:"listen_addr" validate:"required"`
	CORSOrigins    []string `yaml:"cors_origins"`
	EnableWSTail   bool     `yaml:"enable_ws_tail"`
}

// LedgerConfig controls the run ledger persistence.
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn" validate:"required_if=Enabled true"`
}

var validate = validator.New()

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// DefaultConfig returns the constants the specification states explicitly:
// a 5s connect/send timeout, a 10 MiB file buffer, and a 0.85 hash load factor.
func DefaultConfig() *Config {
	return &Config{
		Replay: ReplayConfig{
			OrderPoolPageSize: 4096,
			LimitPoolPageSize: 1024,
			HashLoadFactor:    0.85,
		},
		Telemetry: TelemetryConfig{
			RingCapacity:   1 << 16,
			FileBufferSize: 10 << 20,
		},
		DBClient: DBClientConfig{
			Address:        "127.0.0.1:8186",
			PoolSize:       4,
			ConnectTimeout: 5 * time.Second,
			SendTimeout:    5 * time.Second,
		},
		Coordinator: CoordinatorConfig{
			MaxWorkers:    8,
			EventsSubject: "hftbt.coordinator.events",
			NATSURL:       "nats://127.0.0.1:4222",
		},
		Admin: AdminConfig{
			ListenAddr:  "127.0.0.1:8090",
			CORSOrigins: []string{"*"},
		},
		Ledger: LedgerConfig{
			Enabled: false,
		},
	}
}

// LoadConfig loads configuration from a YAML file, falling back to
// DefaultConfig when the path is empty or the file does not exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := *DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrConfigInvalid, "parse config file %s", path)
	}

	if !isPowerOfTwo(cfg.Telemetry.RingCapacity) {
		return nil, apperrors.Newf(apperrors.ErrConfigInvalid, "telemetry.ring_capacity must be a power of two, got %d", cfg.Telemetry.RingCapacity)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrConfigInvalid, "invalid configuration")
	}

	return &cfg, nil
}
