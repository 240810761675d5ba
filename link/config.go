package link

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/modelrail/go-trackside/logger"
)

// Config represents the configuration parameters for one link manager.
type Config struct {
	// host specifies the host of the remote peripheral. Ignored in passive
	// mode, where the manager listens on all interfaces.
	host string

	// port specifies the TCP port number of the link.
	port int

	// isActive indicates whether the link dials the remote peer (true) or
	// binds and accepts an incoming connection (false).
	// Defaults to true (active mode).
	isActive bool

	// connTimeout is the socket read timeout and the delay between
	// reconnect attempts. Defaults to 3 seconds.
	connTimeout time.Duration

	// maxHeartbeatFail is the number of consecutive read timeouts tolerated
	// before the link is declared dead. A heartbeat byte is emitted after
	// connTimeout * maxHeartbeatFail / 2 of send silence.
	// Defaults to 5.
	maxHeartbeatFail int

	// sendWaitTimeout bounds how long Send blocks waiting for the link to
	// become active after a disconnect. Zero means fail fast.
	// Defaults to 0.
	sendWaitTimeout time.Duration

	// closeTimeout bounds how long Stop waits for the run loop to exit.
	// Defaults to 3 seconds.
	closeTimeout time.Duration

	// readBufferSize is the size of the socket receive buffer in bytes.
	// Defaults to 256, plenty for the short frames of this protocol.
	readBufferSize int

	// logger provides a logger instance for link events and errors.
	logger logger.Logger
}

// NewConfig creates a new link configuration with the given host, port
// number, and optional functional options.
//
// It initializes a Config with default values and then applies the provided
// options. Returns the Config and an error if any option failed to apply.
func NewConfig(host string, port int, opts ...Option) (*Config, error) {
	cfg := &Config{
		host:             host,
		port:             port,
		isActive:         true,
		connTimeout:      3 * time.Second,
		maxHeartbeatFail: 5,
		sendWaitTimeout:  0,
		closeTimeout:     3 * time.Second,
		readBufferSize:   256,
		logger:           logger.GetLogger(),
	}

	if port < 1 || port > 65535 {
		return nil, errors.New("port is out of range [1, 65535]")
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Alias returns the lowercase-normalized endpoint identity of the link.
func (cfg *Config) Alias() string {
	return strings.ToLower(cfg.host + ":" + strconv.Itoa(cfg.port))
}

// ConnTimeout returns the configured socket read timeout.
func (cfg *Config) ConnTimeout() time.Duration { return cfg.connTimeout }

// MaxHeartbeatFail returns the configured consecutive read timeout limit.
func (cfg *Config) MaxHeartbeatFail() int { return cfg.maxHeartbeatFail }

// heartbeatInterval is the send-silence span after which a heartbeat byte
// is emitted.
func (cfg *Config) heartbeatInterval() time.Duration {
	return cfg.connTimeout * time.Duration(cfg.maxHeartbeatFail) / 2
}

// Option represents a functional option for configuring a link Config.
type Option interface {
	apply(*Config) error
}

type optFunc struct {
	name      string
	applyFunc func(*Config) error
}

func (o *optFunc) apply(cfg *Config) error { return o.applyFunc(cfg) }

func newOptFunc(name string, f func(*Config) error) *optFunc {
	return &optFunc{name: name, applyFunc: f}
}

// WithActive sets the link mode to active: the manager dials the remote
// peer and retries every connTimeout until it succeeds or is stopped.
//
// The default mode is active.
func WithActive() Option {
	return newOptFunc("WithActive", func(cfg *Config) error {
		if cfg == nil {
			return ErrConfigNil
		}

		cfg.isActive = true

		return nil
	})
}

// WithPassive sets the link mode to passive: the manager binds the
// configured port on all interfaces and accepts one connection at a time.
//
// The default mode is active.
func WithPassive() Option {
	return newOptFunc("WithPassive", func(cfg *Config) error {
		if cfg == nil {
			return ErrConfigNil
		}

		cfg.isActive = false

		return nil
	})
}

// WithConnTimeout sets the socket read timeout, which is also the delay
// between reconnect attempts and the base unit of the heartbeat interval.
// An error is returned if the timeout is outside [100ms, 60s].
//
// The default value is 3 seconds.
func WithConnTimeout(val time.Duration) Option {
	return newOptFunc("WithConnTimeout", func(cfg *Config) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if val < 100*time.Millisecond || val > 60*time.Second {
			return errors.New("conn timeout out of range [0.1s, 60s]")
		}
		cfg.connTimeout = val

		return nil
	})
}

// WithMaxHeartbeatFail sets how many consecutive read timeouts are
// tolerated before the link is declared dead and reconnected.
// An error is returned if the value is outside [1, 100].
//
// The default value is 5.
func WithMaxHeartbeatFail(val int) Option {
	return newOptFunc("WithMaxHeartbeatFail", func(cfg *Config) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if val < 1 || val > 100 {
			return errors.New("max heartbeat fail out of range [1, 100]")
		}
		cfg.maxHeartbeatFail = val

		return nil
	})
}

// WithSendWaitTimeout bounds how long Send may block waiting for the link
// to become active again after a disconnect. Zero disables waiting and
// makes Send fail fast.
//
// The default value is 0.
func WithSendWaitTimeout(val time.Duration) Option {
	return newOptFunc("WithSendWaitTimeout", func(cfg *Config) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if val < 0 || val > 120*time.Second {
			return errors.New("send wait timeout out of range [0, 120s]")
		}
		cfg.sendWaitTimeout = val

		return nil
	})
}

// WithCloseTimeout bounds how long Stop waits for the run loop goroutine to
// terminate. An error is returned if the timeout is outside [1s, 30s].
//
// The default value is 3 seconds.
func WithCloseTimeout(val time.Duration) Option {
	return newOptFunc("WithCloseTimeout", func(cfg *Config) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if val < 1*time.Second || val > 30*time.Second {
			return errors.New("close timeout out of range [1s, 30s]")
		}
		cfg.closeTimeout = val

		return nil
	})
}

// WithReadBufferSize sets the size of the socket receive buffer.
// An error is returned if the size is outside [64, 65536].
//
// The default value is 256.
func WithReadBufferSize(size int) Option {
	return newOptFunc("WithReadBufferSize", func(cfg *Config) error {
		if cfg == nil {
			return ErrConfigNil
		}

		if size < 64 || size > 65536 {
			return errors.New("read buffer size out of range [64, 65536]")
		}
		cfg.readBufferSize = size

		return nil
	})
}

// WithLogger sets the logger for the link manager.
//
// The default logger is the global logger instance.
func WithLogger(l logger.Logger) Option {
	return newOptFunc("WithLogger", func(cfg *Config) error {
		if cfg == nil {
			return ErrConfigNil
		}

		cfg.logger = l

		return nil
	})
}
