package config

// Default configuration values.
const (
	DefaultInterface          = "eth0"
	DefaultBindAddress        = "0.0.0.0:67"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "json"
	DefaultCapturePath        = "/var/lib/dhcpy/captures.db"
	DefaultCaptureMaxRecords  = 10000
	DefaultRateLimitPerSecond = 100
	DefaultRateLimitPerMAC    = 5
	DefaultMetricsListen      = "127.0.0.1:9267"
)
