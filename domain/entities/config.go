package entities

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the bridge configuration as read from a YAML or TOML file.
type Config struct {
	// Listen is the uwsgi socket address, host:port.
	Listen string `yaml:"listen" toml:"listen" json:"listen" validate:"required,hostname_port" jsonschema_description:"uwsgi socket address (host:port)"`

	// Script is the Lua file every slot loads.
	Script string `yaml:"script" toml:"script" json:"script" validate:"required" jsonschema:"required" jsonschema_description:"Lua handler script loaded by every slot"`

	// Slots is the number of persistent interpreters.
	Slots int `yaml:"slots" toml:"slots" json:"slots" validate:"gte=1,lte=1024" jsonschema:"minimum=1,maximum=1024,default=1"`

	// Async is how many requests one slot multiplexes. Above 1, bodies stream
	// one chunk per scheduling turn.
	Async int `yaml:"async" toml:"async" json:"async" validate:"gte=0,lte=10000"`

	// Modifier1 is the packet modifier routed to the bridge.
	Modifier1 int `yaml:"modifier1" toml:"modifier1" json:"modifier1" validate:"gte=0,lte=255" jsonschema:"minimum=0,maximum=255,default=6"`

	// QueueSize bounds the accepted requests waiting per slot.
	QueueSize int `yaml:"queue_size" toml:"queue_size" json:"queue_size" validate:"gte=0"`

	// ReadTimeout bounds how long a client may take to send the request header.
	ReadTimeout Duration `yaml:"read_timeout" toml:"read_timeout" json:"read_timeout"`

	// MessageTimeout is the default send_message timeout.
	MessageTimeout Duration `yaml:"message_timeout" toml:"message_timeout" json:"message_timeout"`

	// Logging enables the per-request access log.
	Logging bool `yaml:"logging" toml:"logging" json:"logging"`

	// GCAfterRequest runs a garbage collection after every finished request.
	GCAfterRequest bool `yaml:"gc_after_request" toml:"gc_after_request" json:"gc_after_request"`

	Log   LogConfig   `yaml:"log" toml:"log" json:"log"`
	Cache CacheConfig `yaml:"cache" toml:"cache" json:"cache"`
	Admin AdminConfig `yaml:"admin" toml:"admin" json:"admin"`
}

// LogConfig configures the diagnostics logger.
type LogConfig struct {
	Dir        string `yaml:"dir" toml:"dir" json:"dir"`
	Level      string `yaml:"level" toml:"level" json:"level" validate:"omitempty,oneof=debug info warn error"`
	Console    bool   `yaml:"console" toml:"console" json:"console"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb" json:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups" json:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days" json:"max_age_days" validate:"gte=0"`
}

// CacheConfig selects the store behind cache_get and cache_set.
type CacheConfig struct {
	Driver string `yaml:"driver" toml:"driver" json:"driver" validate:"omitempty,oneof=memory sqlite" jsonschema:"enum=memory,enum=sqlite"`
	// Path is the SQLite database file. Required for the sqlite driver.
	Path string `yaml:"path" toml:"path" json:"path" validate:"required_if=Driver sqlite"`
	// PurgeInterval is how often expired sqlite entries are deleted. Zero disables the sweep.
	PurgeInterval Duration `yaml:"purge_interval" toml:"purge_interval" json:"purge_interval" validate:"gte=0"`
}

// AdminConfig configures the HTTP endpoint serving /metrics, /healthz and /slots.
type AdminConfig struct {
	// Listen is the admin address. Empty disables the endpoint.
	Listen string `yaml:"listen" toml:"listen" json:"listen" validate:"omitempty,hostname_port"`
}

// DefaultConfig returns the configuration used for every field a file leaves unset.
func DefaultConfig() Config {
	return Config{
		Listen:         "127.0.0.1:3031",
		Slots:          1,
		Modifier1:      6,
		QueueSize:      64,
		ReadTimeout:    Duration(5 * time.Second),
		MessageTimeout: Duration(4 * time.Second),
		GCAfterRequest: true,
		Log: LogConfig{
			Dir:        "log",
			Level:      "info",
			Console:    true,
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
		Cache: CacheConfig{Driver: "memory", PurgeInterval: Duration(time.Minute)},
	}
}

// ConfigOption is a functional option applied on top of a loaded Config.
type ConfigOption func(*Config)

// WithListen overrides the uwsgi socket address.
func WithListen(addr string) ConfigOption {
	return func(c *Config) {
		if addr != "" {
			c.Listen = addr
		}
	}
}

// WithScript overrides the Lua script path.
func WithScript(path string) ConfigOption {
	return func(c *Config) {
		if path != "" {
			c.Script = path
		}
	}
}

// WithSlots overrides the number of slots. Values below 1 are ignored.
func WithSlots(n int) ConfigOption {
	return func(c *Config) {
		if n > 0 {
			c.Slots = n
		}
	}
}

// WithAsync overrides per-slot multiplexing.
func WithAsync(n int) ConfigOption {
	return func(c *Config) {
		if n >= 0 {
			c.Async = n
		}
	}
}

// Duration is a time.Duration written as "4s" or "1m30s" in config files.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// String implements fmt.Stringer.
func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, used by the TOML and JSON decoders.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}
