package config

// Defaults applied by Normalize.
const (
	DefaultDriver         = "bugst"
	DefaultBaudRate       = 1000000
	DefaultProtocol       = 2
	DefaultLatencyTimerMs = 16
	DefaultPollIntervalMs = 1
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
)

// Normalize fills unset fields with defaults.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	b := &cfg.Bus
	if b.Driver == "" {
		b.Driver = DefaultDriver
	}
	if b.BaudRate == 0 {
		b.BaudRate = DefaultBaudRate
	}
	if b.Protocol == 0 {
		b.Protocol = DefaultProtocol
	}
	if b.LatencyTimerMs == 0 {
		b.LatencyTimerMs = DefaultLatencyTimerMs
	}
	if b.PollIntervalMs == 0 {
		b.PollIntervalMs = DefaultPollIntervalMs
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}
