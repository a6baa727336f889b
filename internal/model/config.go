package model

// Config is the daemon configuration loaded from chime.yaml.
type Config struct {
	Agenda    AgendaConfig    `yaml:"agenda"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Handlers  HandlersConfig  `yaml:"handlers"`
	Logging   LoggingConfig   `yaml:"logging"`
	Policies  []PolicyConfig  `yaml:"policies"`
}

type AgendaConfig struct {
	Dir   string `yaml:"dir"`
	Watch bool   `yaml:"watch"`
}

type SchedulerConfig struct {
	// IntervalSec > 0 runs a tick every IntervalSec seconds. A negative
	// value ticks once the user has been idle for -IntervalSec seconds.
	IntervalSec        int `yaml:"interval_sec"`
	ShutdownTimeoutSec int `yaml:"shutdown_timeout_sec"`
}

type DispatchConfig struct {
	MaxConcurrent     int `yaml:"max_concurrent"`
	HandlerTimeoutSec int `yaml:"handler_timeout_sec"`
}

type HandlersConfig struct {
	Audible AudibleConfig `yaml:"audible"`
	Popup   PopupConfig   `yaml:"popup"`
}

type AudibleConfig struct {
	Player      string `yaml:"player"`
	Sound       string `yaml:"sound"`
	DurationSec int    `yaml:"duration_sec"`
}

type PopupConfig struct {
	TimeoutSec int `yaml:"timeout_sec"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// PolicyConfig declares one escalation policy as data. Offsets and periods
// are compact duration strings ("15m", "-1s", "3d").
type PolicyConfig struct {
	Name  string       `yaml:"name"`
	Tiers []TierConfig `yaml:"tiers"`
}

type TierConfig struct {
	Offset  string            `yaml:"offset"`
	Period  string            `yaml:"period,omitempty"`
	Actions []string          `yaml:"actions"`
	Params  map[string]string `yaml:"params,omitempty"`
}

// DefaultConfig returns the configuration used when chime.yaml is absent or
// leaves fields unset.
func DefaultConfig() Config {
	return Config{
		Agenda:    AgendaConfig{Dir: "agenda", Watch: true},
		Scheduler: SchedulerConfig{IntervalSec: 50, ShutdownTimeoutSec: 30},
		Dispatch:  DispatchConfig{MaxConcurrent: 4, HandlerTimeoutSec: 30},
		Handlers: HandlersConfig{
			Audible: AudibleConfig{DurationSec: 3},
			Popup:   PopupConfig{TimeoutSec: 10},
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// ApplyDefaults fills zero-valued fields of c from DefaultConfig. Negative
// scheduler intervals are preserved, they select idle-triggered ticking.
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.Agenda.Dir == "" {
		c.Agenda.Dir = def.Agenda.Dir
	}
	if c.Scheduler.IntervalSec == 0 {
		c.Scheduler.IntervalSec = def.Scheduler.IntervalSec
	}
	if c.Scheduler.ShutdownTimeoutSec <= 0 {
		c.Scheduler.ShutdownTimeoutSec = def.Scheduler.ShutdownTimeoutSec
	}
	if c.Dispatch.MaxConcurrent <= 0 {
		c.Dispatch.MaxConcurrent = def.Dispatch.MaxConcurrent
	}
	if c.Dispatch.HandlerTimeoutSec <= 0 {
		c.Dispatch.HandlerTimeoutSec = def.Dispatch.HandlerTimeoutSec
	}
	if c.Handlers.Audible.DurationSec <= 0 {
		c.Handlers.Audible.DurationSec = def.Handlers.Audible.DurationSec
	}
	if c.Handlers.Popup.TimeoutSec <= 0 {
		c.Handlers.Popup.TimeoutSec = def.Handlers.Popup.TimeoutSec
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
}
