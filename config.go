package harness

import (
	"log/slog"
	"os"
	"time"

	"github.com/spf13/viper"
)

const (
	configFilePath  = "/etc/cec-harness.yaml"
	recordDirEnvVar = "CEC_RECORD_DIR"
)

// Backend names accepted in configuration.
const (
	BackendCecClient = "cec-client"
	BackendLibcec    = "libcec"
)

type Config struct {
	Backend        string
	ClientBinary   string
	AdapterDevice  string
	DeviceName     string
	TrafficPattern string
	DefaultTimeout time.Duration
	DeviceSerial   string
	RecordDir      string
	Debug          bool
}

// LoadConfig reads the harness configuration from the config file, with
// environment overrides for values that must survive process boundaries.
func LoadConfig() (*Config, error) {
	return loadConfigFrom(configFilePath)
}

func loadConfigFrom(path string) (*Config, error) {
	cfg := &Config{}

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	// Missing config file is fine; everything has a default.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			slog.Warn("Error reading config file", "path", path, "error", err)
		}
	}

	cfg.Backend = viper.GetString("backend")
	cfg.ClientBinary = viper.GetString("client-binary")
	cfg.AdapterDevice = viper.GetString("adapter-device")
	cfg.DeviceName = viper.GetString("device-name")
	cfg.TrafficPattern = viper.GetString("traffic-pattern")
	cfg.DefaultTimeout = viper.GetDuration("default-timeout")
	cfg.DeviceSerial = viper.GetString("device-serial")
	cfg.Debug = viper.GetBool("debug")

	if cfg.RecordDir = os.Getenv(recordDirEnvVar); cfg.RecordDir == "" {
		cfg.RecordDir = viper.GetString("record-dir")
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Backend == "" {
		cfg.Backend = BackendCecClient
	}
	if cfg.ClientBinary == "" {
		cfg.ClientBinary = "cec-client"
	}
	if cfg.DeviceName == "" {
		cfg.DeviceName, _ = os.Hostname()
	}
	if cfg.TrafficPattern == "" {
		cfg.TrafficPattern = DefaultTrafficPattern
	}
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = 10 * time.Second
	}
}
