package resilience

import "time"

// TimeoutConfig centralises all timeout values used across the system.
// Values are organised by subsystem for easy auditing and tuning.
type TimeoutConfig struct {
	HTTP  HTTPTimeouts  `yaml:"http"`
	Redis RedisTimeouts `yaml:"redis"`
	DB    DBTimeouts    `yaml:"database"`
}

// HTTPTimeouts configures outbound HTTP client behaviour, shared by the LLM,
// transcription, and reference-crawler adapters.
type HTTPTimeouts struct {
	// ConnectTimeout is the maximum time to establish a TCP connection.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	// RequestTimeout is the overall request deadline (connect + read).
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// IdleConnTimeout is how long idle keep-alive connections survive.
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
	// TLSHandshakeTimeout limits TLS negotiation.
	TLSHandshakeTimeout time.Duration `yaml:"tls_handshake_timeout"`
	// ResponseHeaderTimeout limits waiting for response headers.
	ResponseHeaderTimeout time.Duration `yaml:"response_header_timeout"`
}

// RedisTimeouts configures Redis operation deadlines, used by the reference
// cache's per-hypothesis advisory lock.
type RedisTimeouts struct {
	// DialTimeout is the timeout for establishing new connections.
	DialTimeout time.Duration `yaml:"dial_timeout"`
	// ReadTimeout is the timeout per read operation.
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// WriteTimeout is the timeout per write operation.
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// PoolTimeout is how long to wait for an available pool connection.
	PoolTimeout time.Duration `yaml:"pool_timeout"`
	// LockTimeout bounds how long a caller waits to acquire the advisory
	// lock before giving up and serving a possibly-stale reference.
	LockTimeout time.Duration `yaml:"lock_timeout"`
}

// DBTimeouts configures relational Store operation deadlines.
type DBTimeouts struct {
	// QueryTimeout bounds a single read query.
	QueryTimeout time.Duration `yaml:"query_timeout"`
	// TxTimeout bounds an entire WithTx call, including retries on
	// serialization failure.
	TxTimeout time.Duration `yaml:"tx_timeout"`
}

// DefaultTimeoutConfig returns production-safe defaults for all subsystems.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		HTTP: HTTPTimeouts{
			ConnectTimeout:        5 * time.Second,
			RequestTimeout:        30 * time.Second,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
		},
		Redis: RedisTimeouts{
			DialTimeout:  5 * time.Second,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			PoolTimeout:  6 * time.Second,
			LockTimeout:  10 * time.Second,
		},
		DB: DBTimeouts{
			QueryTimeout: 10 * time.Second,
			TxTimeout:    20 * time.Second,
		},
	}
}
