package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nerrad567/fhz2mqtt/internal/infrastructure/config"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	port       string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "fhz2mqtt",
		Short: "FHZ1000 to MQTT bridge for FHT80b thermostats",
		Long: `fhz2mqtt talks to FHT80b room thermostats through an ELV FHZ1000
transceiver on a serial port.

The serve command publishes every decoded thermostat value to MQTT and accepts
set requests on <namespace>/set/fht/<house-code>/<command>. The remaining
commands are tools for working with the transceiver directly.

The config file defaults to configs/config.yaml and may be set with
--config or the FHZ2MQTT_CONFIG environment variable.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file path")
	root.PersistentFlags().StringVarP(&opts.port, "port", "p", "", "Serial port device (overrides config)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")

	root.AddCommand(
		newServeCmd(opts),
		newSendCmd(opts),
		newMonitorCmd(opts),
		newReplayCmd(opts),
		newCommandsCmd(),
		newPortsCmd(),
	)

	return root
}

// configFile returns the config file path, checking the flag first, then
// the environment.
func (o *rootOptions) configFile() string {
	if o.configPath != "" {
		return o.configPath
	}
	if path := os.Getenv("FHZ2MQTT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadConfig reads the config file and applies the flag overrides. A missing
// file is not an error for the tool commands: defaults plus environment are
// enough to open a port.
//
// Parameters:
//   - requireFile: Fail when the config file does not exist
//
// Returns:
//   - *config.Config: Loaded configuration
//   - error: If the file is invalid, or missing and required
func (o *rootOptions) loadConfig(requireFile bool) (*config.Config, error) {
	path := o.configFile()

	var cfg *config.Config
	if _, statErr := os.Stat(path); statErr != nil && !requireFile && os.IsNotExist(statErr) {
		cfg = config.Default()
	} else {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	if o.port != "" {
		cfg.Serial.Device = o.port
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}
