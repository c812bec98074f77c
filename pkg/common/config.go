package common

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// ConfigPathEnv overrides the user config file location
	ConfigPathEnv = "AIRKV_CONFIG_PATH"

	userConfigDir  = ".airkv"
	userConfigFile = "config.yaml"
)

//go:embed config.default.yaml
var defaultConfig []byte

// ConfigManager loads a typed configuration from embedded defaults overlaid with an optional user file.
type ConfigManager[T any] struct {
	kf     *koanf.Koanf
	config T
	path   string
}

type configOptions struct {
	path string
}

// ConfigOption customizes NewConfigManager
type ConfigOption func(*configOptions)

// WithConfigFile loads the given file instead of the default user config location
func WithConfigFile(path string) ConfigOption {
	return func(o *configOptions) { o.path = path }
}

func NewConfigManager[T any](opts ...ConfigOption) (*ConfigManager[T], error) {
	o := configOptions{path: os.Getenv(ConfigPathEnv)}
	for _, opt := range opts {
		opt(&o)
	}

	cm := &ConfigManager[T]{kf: koanf.New(".")}

	if err := cm.kf.Load(rawbytes.Provider(defaultConfig), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	explicit := o.path != ""
	if !explicit {
		o.path = DefaultUserConfigPath()
	}
	if _, err := os.Stat(o.path); err == nil {
		if err := cm.kf.Load(file.Provider(o.path), parserFor(o.path)); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", o.path, err)
		}
		cm.path = o.path
	} else if explicit || !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config file %s: %w", o.path, err)
	}

	if err := cm.unmarshal(&cm.config); err != nil {
		return nil, err
	}
	return cm, nil
}

func (cm *ConfigManager[T]) unmarshal(out *T) error {
	err := cm.kf.UnmarshalWithConf("", out, koanf.UnmarshalConf{
		Tag: "key",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			Result:           out,
			TagName:          "key",
			WeaklyTypedInput: true,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	return nil
}

// GetConfig returns the loaded configuration
func (cm *ConfigManager[T]) GetConfig() T {
	return cm.config
}

// Path returns the user config file that was loaded, or "" when only defaults apply
func (cm *ConfigManager[T]) Path() string {
	return cm.path
}

// DefaultUserConfigPath returns ~/.airkv/config.yaml
func DefaultUserConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, userConfigDir, userConfigFile)
}

// DefaultDataDir returns ~/.airkv
func DefaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, userConfigDir)
}

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func parserFor(path string) koanf.Parser {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return json.Parser()
	}
	return yaml.Parser()
}
