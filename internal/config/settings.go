package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix scopes environment overrides, e.g. CHORUS_LOG_LEVEL.
const EnvPrefix = "CHORUS"

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file,omitempty"`
}

type OutputConfig struct {
	QueueBytes int  `mapstructure:"queue_bytes" yaml:"queue_bytes"`
	SampleRate int  `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels   int  `mapstructure:"channels" yaml:"channels"`
	Silence    bool `mapstructure:"silence" yaml:"silence"`
}

type DevicesConfig struct {
	StrictDispatch bool   `mapstructure:"strict_dispatch" yaml:"strict_dispatch"`
	PairStore      string `mapstructure:"pair_store" yaml:"pair_store,omitempty"`
	PinCode        string `mapstructure:"pin_code" yaml:"pin_code,omitempty"`
}

type BackendConfig struct {
	Name      string   `mapstructure:"name" yaml:"name"`
	Schemes   []string `mapstructure:"schemes" yaml:"schemes"`
	Library   bool     `mapstructure:"library" yaml:"library"`
	Browse    bool     `mapstructure:"browse" yaml:"browse"`
	Playback  bool     `mapstructure:"playback" yaml:"playback"`
	Playlists bool     `mapstructure:"playlists" yaml:"playlists"`
}

type ServiceConfig struct {
	Name     string   `mapstructure:"name" yaml:"name"`
	Public   bool     `mapstructure:"public" yaml:"public"`
	Required []string `mapstructure:"required" yaml:"required,omitempty"`
	Enabled  bool     `mapstructure:"enabled" yaml:"enabled"`
}

type DeviceManagerConfig struct {
	Types []string `mapstructure:"types" yaml:"types"`
}

// EventsConfig tunes the event bus. CorePolicy is the backpressure strategy
// for frontends subscribed to the core topic.
type EventsConfig struct {
	CorePolicy string `mapstructure:"core_policy" yaml:"core_policy"`
}

type MetricsConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen,omitempty"`
}

// Settings is the daemon configuration.
type Settings struct {
	Log            LogConfig             `mapstructure:"log" yaml:"log"`
	Output         OutputConfig          `mapstructure:"output" yaml:"output"`
	Devices        DevicesConfig         `mapstructure:"devices" yaml:"devices"`
	Backends       []BackendConfig       `mapstructure:"backends" yaml:"backends"`
	Services       []ServiceConfig       `mapstructure:"services" yaml:"services"`
	DeviceManagers []DeviceManagerConfig `mapstructure:"device_managers" yaml:"device_managers"`
	Events         EventsConfig          `mapstructure:"events" yaml:"events"`
	Metrics        MetricsConfig         `mapstructure:"metrics" yaml:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("output.queue_bytes", 256*1024)
	v.SetDefault("output.sample_rate", 44100)
	v.SetDefault("output.channels", 2)
	v.SetDefault("output.silence", true)
	v.SetDefault("devices.strict_dispatch", true)
	v.SetDefault("devices.pair_store", "")
	v.SetDefault("devices.pin_code", "")
	v.SetDefault("events.core_policy", "drop-oldest")
	v.SetDefault("metrics.listen", "")
	v.SetDefault("backends", []map[string]any{
		{"name": "local", "schemes": []string{"file"}, "library": true, "browse": true, "playback": true, "playlists": true},
	})
	v.SetDefault("device_managers", []map[string]any{
		{"types": []string{"dummy"}},
	})
}

// Load reads path, or the instance config when path is empty. A missing
// instance config is not an error: defaults and CHORUS_* variables apply.
func Load(path, instance string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigType("yaml")

	explicit := path != ""
	if !explicit {
		path = GetInstancePaths(instance).Config
	}
	v.SetConfigFile(ExpandPath(path))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !(errors.As(err, &notFound) || isMissingFile(err)) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if settings.Devices.PairStore == "" {
		settings.Devices.PairStore = GetInstancePaths(instance).PairStore
	}
	settings.Devices.PairStore = ExpandPath(settings.Devices.PairStore)
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Validate rejects settings the daemon cannot start with.
func (s *Settings) Validate() error {
	var errs []error
	if s.Output.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("output.sample_rate must be positive, got %d", s.Output.SampleRate))
	}
	if s.Output.Channels <= 0 {
		errs = append(errs, fmt.Errorf("output.channels must be positive, got %d", s.Output.Channels))
	}
	switch s.Events.CorePolicy {
	case "drop-oldest", "drop-newest", "spill":
	default:
		errs = append(errs, fmt.Errorf("events.core_policy must be drop-oldest, drop-newest or spill, got %q", s.Events.CorePolicy))
	}
	for i, b := range s.Backends {
		if b.Name == "" {
			errs = append(errs, fmt.Errorf("backends[%d]: name is required", i))
		}
	}
	for i, svc := range s.Services {
		if svc.Name == "" {
			errs = append(errs, fmt.Errorf("services[%d]: name is required", i))
		}
	}
	return errors.Join(errs...)
}

// Dump writes the effective settings as YAML.
func (s *Settings) Dump(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
