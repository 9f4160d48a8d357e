package config

// LogFile holds the configuration for the log file.
type LogFile struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// Encoder holds the configuration for the external encoder binary.
type Encoder struct {
	BinPath string `yaml:"binpath,omitempty"`
}

// Output holds the default encoding settings for the live stream.
type Output struct {
	Width       int `yaml:"width,omitempty"`
	Height      int `yaml:"height,omitempty"`
	FrameRate   int `yaml:"framerate,omitempty"`
	BitrateKbps int `yaml:"bitrate_kbps,omitempty"`
}

// Recordings holds the configuration for local recordings.
type Recordings struct {
	Directory   string `yaml:"directory,omitempty"`
	Format      string `yaml:"format,omitempty"`
	BitrateKbps int    `yaml:"bitrate_kbps,omitempty"`
}

// Config holds the configuration for the engine.
type Config struct {
	LogFile    LogFile    `yaml:"logfile"`
	Encoder    Encoder    `yaml:"encoder"`
	Output     Output     `yaml:"output"`
	Recordings Recordings `yaml:"recordings"`
}
