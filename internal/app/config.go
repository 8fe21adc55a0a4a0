package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"rs41sim/internal/gps"
	"rs41sim/internal/logfile"
	"rs41sim/internal/logging"
	"rs41sim/internal/rtlsdr"
	"rs41sim/internal/scheduler"
	"rs41sim/internal/sink"
)

// Default configuration constants
const (
	DefaultSink            = SinkSerial
	DefaultSinglePower     = -3 // dBm, transmit mode
	DefaultPrimaryPower    = 0  // dBm, spoof mode
	DefaultSecondaryPower  = 19 // dBm, spoof mode
	DefaultPrimaryLevel    = 0.08
	DefaultSecondaryLevel  = 0.8
	DefaultCriteria        = "GPSAltitude>"
	DefaultCriteriaValue   = 5000 // m
	DefaultLead            = 365  // primary frames played before the criteria record
	DefaultJournalDir      = "./journal"
	DefaultJournalMaxDays  = 30
	DefaultEnvPrefix       = "RS41SIM"
	DefaultSubframeEntries = 51
)

// Sink kinds
const (
	SinkSerial = "serial"
	SinkAudio  = "audio"
	SinkFile   = "file"
)

// Modes
const (
	ModeTransmit = "transmit"
	ModeSpoof    = "spoof"
)

// StreamConfig describes one replayed log and its transmitter.
type StreamConfig struct {
	Log        string  `mapstructure:"log"`
	Port       string  `mapstructure:"port"`
	SerialBaud int     `mapstructure:"serial_baud"`
	Output     string  `mapstructure:"output"` // file sink path
	Frequency  uint32  `mapstructure:"frequency"`
	Baud       uint32  `mapstructure:"baud"`
	Deviation  uint32  `mapstructure:"deviation"`
	Modulation uint8   `mapstructure:"modulation"`
	Power      int8    `mapstructure:"power"`
	Amplitude  float64 `mapstructure:"amplitude"`
}

// RFHeader returns the transmitter control header of the stream.
func (s StreamConfig) RFHeader() sink.RFHeader {
	return sink.RFHeader{
		Frequency:  s.Frequency,
		Baud:       s.Baud,
		Deviation:  s.Deviation,
		Modulation: s.Modulation,
		Power:      s.Power,
	}
}

// SchedulerConfig tunes the real-time loop.
type SchedulerConfig struct {
	Tick       time.Duration `mapstructure:"tick"`
	StartDelay time.Duration `mapstructure:"start_delay"`
}

// SpoofConfig configures the trigger and the jam/transmit sequence.
type SpoofConfig struct {
	Criteria         string  `mapstructure:"criteria"`
	Value            float64 `mapstructure:"value"`
	Lead             int     `mapstructure:"lead"`
	JammingMessages  int     `mapstructure:"jamming_messages"`
	FramesToTransmit int     `mapstructure:"frames_to_transmit"`
	LeapSeconds      int     `mapstructure:"leap_seconds"`
	// The primary stream runs quieter while the secondary takes over.
	PrimaryPower     int8    `mapstructure:"primary_power"`
	PrimaryAmplitude float64 `mapstructure:"primary_amplitude"`
}

// JournalConfig configures the daily transmit journal. An empty Dir
// disables it.
type JournalConfig struct {
	Dir     string `mapstructure:"dir"`
	UTC     bool   `mapstructure:"utc"`
	MaxDays int    `mapstructure:"max_days"`
}

// ArchiveConfig configures the SQLite burst archive. An empty Path
// disables it.
type ArchiveConfig struct {
	Path string `mapstructure:"path"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr disables
// it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
	Path string `mapstructure:"path"`
}

// AudioConfig configures audio sinks.
type AudioConfig struct {
	SampleRate int `mapstructure:"sample_rate"`
}

// Config holds application configuration
type Config struct {
	Mode      string          `mapstructure:"-"`
	Verbose   bool            `mapstructure:"verbose"`
	Sink      string          `mapstructure:"sink"`
	Logging   logging.Config  `mapstructure:"logging"`
	Primary   StreamConfig    `mapstructure:"primary"`
	Secondary StreamConfig    `mapstructure:"secondary"`
	Audio     AudioConfig     `mapstructure:"audio"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Spoof     SpoofConfig     `mapstructure:"spoof"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Monitor   rtlsdr.Config   `mapstructure:"monitor"`
}

// Load reads configuration from the optional file at path and RS41SIM_*
// environment variables on top of the defaults. flags maps configuration
// keys to command line flags, which take precedence when set.
func Load(path string, flags map[string]*pflag.Flag) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, flag := range flags {
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", key, err)
		}
	}

	v.SetEnvPrefix(DefaultEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("verbose", false)
	v.SetDefault("sink", DefaultSink)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.max_size", 50)
	v.SetDefault("logging.file.max_backups", 7)
	v.SetDefault("logging.file.max_age", 30)
	v.SetDefault("logging.file.compress", true)

	for _, stream := range []string{"primary", "secondary"} {
		v.SetDefault(stream+".log", "")
		v.SetDefault(stream+".port", "")
		v.SetDefault(stream+".output", "")
		v.SetDefault(stream+".serial_baud", sink.DefaultSerialBaud)
		v.SetDefault(stream+".frequency", sink.DefaultFrequency)
		v.SetDefault(stream+".baud", sink.DefaultBaud)
		v.SetDefault(stream+".deviation", sink.DefaultDeviation)
		v.SetDefault(stream+".modulation", sink.DefaultModulation)
	}
	v.SetDefault("primary.power", DefaultSinglePower)
	v.SetDefault("secondary.power", DefaultSecondaryPower)
	v.SetDefault("primary.amplitude", sink.DefaultAmplitude)
	v.SetDefault("secondary.amplitude", DefaultSecondaryLevel)

	v.SetDefault("audio.sample_rate", sink.DefaultSampleRate)

	v.SetDefault("scheduler.tick", scheduler.DefaultTick)
	v.SetDefault("scheduler.start_delay", scheduler.DefaultStartDelay)

	v.SetDefault("spoof.criteria", DefaultCriteria)
	v.SetDefault("spoof.value", DefaultCriteriaValue)
	v.SetDefault("spoof.lead", DefaultLead)
	v.SetDefault("spoof.jamming_messages", scheduler.DefaultJammingMessages)
	v.SetDefault("spoof.frames_to_transmit", scheduler.DefaultFramesToTransmit)
	v.SetDefault("spoof.leap_seconds", gps.LeapSeconds)
	v.SetDefault("spoof.primary_power", DefaultPrimaryPower)
	v.SetDefault("spoof.primary_amplitude", DefaultPrimaryLevel)

	v.SetDefault("journal.dir", DefaultJournalDir)
	v.SetDefault("journal.utc", true)
	v.SetDefault("journal.max_days", DefaultJournalMaxDays)

	v.SetDefault("archive.path", "")

	v.SetDefault("metrics.addr", "")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("monitor.device_index", 0)
	v.SetDefault("monitor.frequency", rtlsdr.DefaultFrequency)
	v.SetDefault("monitor.sample_rate", rtlsdr.DefaultSampleRate)
	v.SetDefault("monitor.gain", 0)
	v.SetDefault("monitor.threshold_db", rtlsdr.DefaultThresholdDB)
}

// Streams returns the stream settings of the configured mode. In spoof
// mode the primary stream uses the spoof power and amplitude.
func (c *Config) Streams() []StreamConfig {
	if c.Mode != ModeSpoof {
		return []StreamConfig{c.Primary}
	}
	primary := c.Primary
	primary.Power = c.Spoof.PrimaryPower
	primary.Amplitude = c.Spoof.PrimaryAmplitude
	return []StreamConfig{primary, c.Secondary}
}

// Criteria parses the configured trigger.
func (c *Config) Criteria() (logfile.Criteria, error) {
	return logfile.ParseCriteria(c.Spoof.Criteria, c.Spoof.Value)
}

// Validate checks the settings needed by the configured mode.
func (c *Config) Validate() error {
	var errs []error
	if c.Primary.Log == "" {
		errs = append(errs, errors.New("primary log file is required"))
	}
	if c.Mode == ModeSpoof {
		if c.Secondary.Log == "" {
			errs = append(errs, errors.New("secondary log file is required"))
		}
		if _, err := c.Criteria(); err != nil {
			errs = append(errs, err)
		}
	}
	streams := c.Streams()

	switch c.Sink {
	case SinkSerial:
		for i, s := range streams {
			if s.Port == "" {
				errs = append(errs, fmt.Errorf("stream %d: serial port is required", i+1))
			}
		}
	case SinkFile:
		for i, s := range streams {
			if s.Output == "" {
				errs = append(errs, fmt.Errorf("stream %d: output file is required", i+1))
			}
		}
	case SinkAudio:
	default:
		errs = append(errs, fmt.Errorf("unknown sink %q", c.Sink))
	}
	return errors.Join(errs...)
}
