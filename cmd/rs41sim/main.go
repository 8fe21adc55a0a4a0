package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"rs41sim/internal/app"
	"rs41sim/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// flagKeys maps command line flags to configuration keys.
type flagKeys map[string]string

func (k flagKeys) bind(flags *pflag.FlagSet) map[string]*pflag.Flag {
	out := make(map[string]*pflag.Flag)
	for name, key := range k {
		if f := flags.Lookup(name); f != nil {
			out[key] = f
		}
	}
	return out
}

var commonKeys = flagKeys{
	"verbose":      "verbose",
	"log-level":    "logging.level",
	"log-format":   "logging.format",
	"log-file":     "logging.file.filename",
	"sink":         "sink",
	"sample-rate":  "audio.sample_rate",
	"journal-dir":  "journal.dir",
	"archive":      "archive.path",
	"metrics-addr": "metrics.addr",
	"tick":         "scheduler.tick",
	"start-delay":  "scheduler.start_delay",
}

func loadConfig(cmd *cobra.Command, keys ...flagKeys) (*app.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	bindings := commonKeys.bind(cmd.Flags())
	for _, k := range keys {
		for key, f := range k.bind(cmd.Flags()) {
			bindings[key] = f
		}
	}
	return app.Load(path, bindings)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rs41sim",
		Short: "RS41 radiosonde frame simulator",
		Long: `RS41 radiosonde frame simulator.

Replays recorded RS41 flights in real time, one frame per second, through a
serial transmitter, an audio output or a file. In spoof mode a second flight
takes over the first once a trigger condition is met: the live sonde is
jammed, the second stream transmits frames rebuilt to continue the first
flight, and the sequence ends with another jam.

Example usage:
  rs41sim transmit --log flight.txt --port /dev/ttyUSB0
  rs41sim spoof --log1 a.txt --log2 b.txt --port1 /dev/ttyUSB0 --port2 /dev/ttyUSB1 --criteria 'GPSAltitude>' --value 5000
  rs41sim inspect flight.txt --index 120`,
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringP("config", "c", "", "Configuration file (YAML, JSON or TOML)")
	pf.BoolP("verbose", "v", false, "Verbose logging")
	pf.String("log-level", "info", "Log level")
	pf.String("log-format", "text", "Log format (text or json)")
	pf.String("log-file", "", "Also write logs to this rotated file")

	rootCmd.AddCommand(
		newTransmitCmd(),
		newSpoofCmd(),
		newInspectCmd(),
		newMonitorCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func addRunFlags(fs *pflag.FlagSet) {
	fs.StringP("sink", "s", app.DefaultSink, "Output: serial, audio or file")
	fs.Int("sample-rate", 44100, "Audio sample rate (Hz)")
	fs.String("journal-dir", app.DefaultJournalDir, "Transmit journal directory (empty to disable)")
	fs.String("archive", "", "SQLite burst archive (empty to disable)")
	fs.String("metrics-addr", "", "Prometheus listen address, e.g. :9141 (empty to disable)")
	fs.Duration("tick", 0, "Scheduler poll interval")
	fs.Duration("start-delay", 0, "Delay before the first frame")
}

func runApplication(cfg *app.Config) error {
	application, err := app.NewApplication(cfg)
	if err != nil {
		return err
	}
	return application.Start()
}

func newTransmitCmd() *cobra.Command {
	keys := flagKeys{
		"log":       "primary.log",
		"port":      "primary.port",
		"output":    "primary.output",
		"power":     "primary.power",
		"amplitude": "primary.amplitude",
		"frequency": "primary.frequency",
	}
	cmd := &cobra.Command{
		Use:   "transmit",
		Short: "Replay one recorded flight",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, keys)
			if err != nil {
				return err
			}
			cfg.Mode = app.ModeTransmit
			return runApplication(cfg)
		},
	}
	fs := cmd.Flags()
	addRunFlags(fs)
	fs.StringP("log", "l", "", "Recorded flight")
	fs.StringP("port", "p", "", "Serial port of the transmitter")
	fs.StringP("output", "o", "", "Output file for the file sink")
	fs.Int8("power", app.DefaultSinglePower, "Transmit power (dBm)")
	fs.Float64("amplitude", 0, "Audio amplitude (0..1)")
	fs.Uint32("frequency", 0, "Transmit frequency (Hz)")
	return cmd
}

func newSpoofCmd() *cobra.Command {
	keys := flagKeys{
		"log1":             "primary.log",
		"log2":             "secondary.log",
		"port1":            "primary.port",
		"port2":            "secondary.port",
		"output1":          "primary.output",
		"output2":          "secondary.output",
		"power1":           "spoof.primary_power",
		"power2":           "secondary.power",
		"amplitude1":       "spoof.primary_amplitude",
		"amplitude2":       "secondary.amplitude",
		"criteria":         "spoof.criteria",
		"value":            "spoof.value",
		"lead":             "spoof.lead",
		"jamming-messages": "spoof.jamming_messages",
		"frames":           "spoof.frames_to_transmit",
	}
	cmd := &cobra.Command{
		Use:   "spoof",
		Short: "Replay a flight and take it over with a second one",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, keys)
			if err != nil {
				return err
			}
			cfg.Mode = app.ModeSpoof
			return runApplication(cfg)
		},
	}
	fs := cmd.Flags()
	addRunFlags(fs)
	fs.String("log1", "", "Flight heard by the receiver")
	fs.String("log2", "", "Flight that takes over")
	fs.String("port1", "", "Serial port of the first transmitter")
	fs.String("port2", "", "Serial port of the second transmitter")
	fs.String("output1", "", "Output file of the first stream")
	fs.String("output2", "", "Output file of the second stream")
	fs.Int8("power1", app.DefaultPrimaryPower, "First stream power (dBm)")
	fs.Int8("power2", app.DefaultSecondaryPower, "Second stream power (dBm)")
	fs.Float64("amplitude1", app.DefaultPrimaryLevel, "First stream audio amplitude")
	fs.Float64("amplitude2", app.DefaultSecondaryLevel, "Second stream audio amplitude")
	fs.String("criteria", app.DefaultCriteria, "Trigger: GPSAltitude>, GPSAltitude< or UponDescent")
	fs.Float64("value", app.DefaultCriteriaValue, "Trigger altitude (m)")
	fs.Int("lead", app.DefaultLead, "First stream records played before its trigger record")
	fs.Int("jamming-messages", 5, "Jamming bursts before and after the takeover")
	fs.Int("frames", 30, "Frames transmitted by the second stream")
	return cmd
}

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <log>",
		Short: "Decode one record of a recorded flight",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, closer, err := logging.NewLogger(cfg.Logging)
			if err != nil {
				return err
			}
			defer closer.Close()
			index, _ := cmd.Flags().GetInt("index")
			return app.Inspect(args[0], index, cmd.OutOrStdout(), logger)
		},
	}
	cmd.Flags().IntP("index", "i", 0, "Record index")
	return cmd
}

func newMonitorCmd() *cobra.Command {
	keys := flagKeys{
		"device":      "monitor.device_index",
		"frequency":   "monitor.frequency",
		"sample-rate": "monitor.sample_rate",
		"gain":        "monitor.gain",
		"threshold":   "monitor.threshold_db",
	}
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Log bursts heard on the sonde channel with an RTL-SDR",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, keys)
			if err != nil {
				return err
			}
			logger, closer, err := logging.NewLogger(cfg.Logging)
			if err != nil {
				return err
			}
			defer closer.Close()
			if cfg.Verbose {
				logger.SetLevel(logrus.DebugLevel)
			}
			return app.Monitor(cfg.Monitor, logger)
		},
	}
	fs := cmd.Flags()
	fs.IntP("device", "d", 0, "RTL-SDR device index")
	fs.Uint32P("frequency", "f", 401400000, "Frequency to tune to (Hz)")
	fs.Uint32("sample-rate", 1024000, "Sample rate (Hz)")
	fs.IntP("gain", "g", 0, "Gain setting (0 for auto)")
	fs.Float64("threshold", 10, "Burst threshold above the noise floor (dB)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			app.ShowVersion(cmd.OutOrStdout())
		},
	}
}
