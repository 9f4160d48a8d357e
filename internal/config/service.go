package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/nickdnj/VistterStudio-sub000/internal/domain"
)

// Default output settings, applied when the config file does not override
// them. They match the live-stream defaults expected by the control plane.
const (
	DefaultWidth       = 1920
	DefaultHeight      = 1080
	DefaultFrameRate   = 30
	DefaultBitrateKbps = 3500

	defaultEncoderBin     = "ffmpeg"
	defaultRecordingsFmt  = "mp4"
	defaultRecordingsKbps = 6000
)

// Service provides configuration services.
type Service struct {
	userConfigDir string
	appConfigDir  string
	appStateDir   string
}

// ConfigDirFunc is a function that returns the user configuration directory.
type ConfigDirFunc func() (string, error)

// NewDefaultService creates a new service with the default configuration
// file location.
func NewDefaultService() (*Service, error) {
	return NewService(os.UserConfigDir)
}

// NewService creates a new service with the provided ConfigDirFunc.
//
// The app data directories (config and state) are created if they do not
// exist.
func NewService(configDirFunc ConfigDirFunc) (*Service, error) {
	configDir, err := configDirFunc()
	if err != nil {
		return nil, fmt.Errorf("user config dir: %w", err)
	}

	appConfigDir, err := createAppConfigDir(configDir)
	if err != nil {
		return nil, fmt.Errorf("app config dir: %w", err)
	}

	appStateDir, err := createAppStateDir()
	if err != nil {
		return nil, fmt.Errorf("app state dir: %w", err)
	}

	return &Service{
		userConfigDir: configDir,
		appConfigDir:  appConfigDir,
		appStateDir:   appStateDir,
	}, nil
}

// ReadOrCreateConfig reads the configuration from the file at the given
// path or creates it with default values.
func (s *Service) ReadOrCreateConfig() (cfg Config, _ error) {
	if _, err := os.Stat(s.Path()); os.IsNotExist(err) {
		return s.createConfig()
	} else if err != nil {
		return cfg, fmt.Errorf("stat: %w", err)
	}

	return s.readConfig()
}

func (s *Service) readConfig() (cfg Config, _ error) {
	contents, err := os.ReadFile(s.Path())
	if err != nil {
		return cfg, fmt.Errorf("read file: %w", err)
	}

	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal: %w", err)
	}

	s.setDefaults(&cfg)

	if err = validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func (s *Service) createConfig() (cfg Config, _ error) {
	if err := os.MkdirAll(s.appConfigDir, 0744); err != nil {
		return cfg, fmt.Errorf("mkdir: %w", err)
	}

	s.setDefaults(&cfg)

	yamlBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return cfg, fmt.Errorf("marshal: %w", err)
	}

	if err = os.WriteFile(s.Path(), yamlBytes, 0644); err != nil {
		return cfg, fmt.Errorf("write file: %w", err)
	}

	return cfg, nil
}

// Path returns the path of the configuration file.
func (s *Service) Path() string {
	return filepath.Join(s.appConfigDir, "config.yaml")
}

func (s *Service) setDefaults(cfg *Config) {
	if cfg.LogFile.Enabled && cfg.LogFile.Path == "" {
		cfg.LogFile.Path = filepath.Join(s.appStateDir, domain.AppName+".log")
	}

	if cfg.Encoder.BinPath == "" {
		cfg.Encoder.BinPath = defaultEncoderBin
	}

	if cfg.Output.Width == 0 {
		cfg.Output.Width = DefaultWidth
	}
	if cfg.Output.Height == 0 {
		cfg.Output.Height = DefaultHeight
	}
	if cfg.Output.FrameRate == 0 {
		cfg.Output.FrameRate = DefaultFrameRate
	}
	if cfg.Output.BitrateKbps == 0 {
		cfg.Output.BitrateKbps = DefaultBitrateKbps
	}

	if cfg.Recordings.Directory == "" {
		cfg.Recordings.Directory = filepath.Join(s.appStateDir, "recordings")
	}
	if cfg.Recordings.Format == "" {
		cfg.Recordings.Format = defaultRecordingsFmt
	}
	if cfg.Recordings.BitrateKbps == 0 {
		cfg.Recordings.BitrateKbps = defaultRecordingsKbps
	}
}

func validate(cfg Config) error {
	var err error

	if cfg.Output.Width <= 0 || cfg.Output.Height <= 0 {
		err = errors.Join(err, errors.New("output resolution must be positive"))
	}
	if cfg.Output.FrameRate <= 0 {
		err = errors.Join(err, errors.New("output framerate must be positive"))
	}
	if cfg.Output.BitrateKbps <= 0 {
		err = errors.Join(err, errors.New("output bitrate must be positive"))
	}
	if cfg.Recordings.BitrateKbps <= 0 {
		err = errors.Join(err, errors.New("recordings bitrate must be positive"))
	}

	return err
}
