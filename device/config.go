package device

import (
	"log/slog"
	"time"
)

const (
	// DefaultReadSize is the most a single poll reads from the device.
	DefaultReadSize = 10000
	// DefaultPollInterval is the pause between successful reads.
	DefaultPollInterval = time.Millisecond
	// DefaultRetryInterval is the pause after a failed read or connect.
	DefaultRetryInterval = time.Second
)

// Config holds the Session settings. Use NewConfigBuilder to create one.
type Config struct {
	dialer        Dialer
	logger        *slog.Logger
	pacing        Pacing
	readSize      int
	pollInterval  time.Duration
	retryInterval time.Duration
	stateBuffer   int
	messageBuffer int
}

func (c *Config) validate() error {
	if c.dialer == nil {
		return ErrNoDialer
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.pacing == (Pacing{}) {
		c.pacing = DefaultPacing()
	}
	if c.readSize <= 0 {
		c.readSize = DefaultReadSize
	}
	if c.pollInterval <= 0 {
		c.pollInterval = DefaultPollInterval
	}
	if c.retryInterval <= 0 {
		c.retryInterval = DefaultRetryInterval
	}
	if c.stateBuffer <= 0 {
		c.stateBuffer = 16
	}
	if c.messageBuffer <= 0 {
		c.messageBuffer = 256
	}
}

// ConfigBuilder assembles a Config.
type ConfigBuilder struct {
	config Config
}

// NewConfigBuilder returns a builder with all defaults unset.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.dialer = d
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.logger = l
	return b
}

// WithPacing overrides the transfer delays. Lowering them below the
// defaults can crash the device's receiver.
func (b *ConfigBuilder) WithPacing(p Pacing) *ConfigBuilder {
	b.config.pacing = p
	return b
}

func (b *ConfigBuilder) WithReadSize(n int) *ConfigBuilder {
	b.config.readSize = n
	return b
}

func (b *ConfigBuilder) WithPollInterval(d time.Duration) *ConfigBuilder {
	b.config.pollInterval = d
	return b
}

func (b *ConfigBuilder) WithRetryInterval(d time.Duration) *ConfigBuilder {
	b.config.retryInterval = d
	return b
}

func (b *ConfigBuilder) WithMessageBuffer(n int) *ConfigBuilder {
	b.config.messageBuffer = n
	return b
}

// Build validates the configuration and fills in defaults.
func (b *ConfigBuilder) Build() (Config, error) {
	config := b.config
	if err := config.validate(); err != nil {
		return Config{}, err
	}
	config.setDefaults()
	return config, nil
}
