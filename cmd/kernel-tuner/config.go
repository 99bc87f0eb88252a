package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/anantzoid/kernel-tuner/internal/jobfile"
	"github.com/anantzoid/kernel-tuner/pkg/tuner"
)

// Config represents the kernel-tuner configuration file
// (~/.config/kernel-tuner/config.yaml). Pointer fields distinguish "not set"
// from zero values.
type Config struct {
	Lang       string `yaml:"lang"`
	Device     *int64 `yaml:"device"`
	Iterations *int64 `yaml:"iterations"`
	OutputDir  string `yaml:"output_dir"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "kernel-tuner", "config.yaml")
}

// LoadConfig reads the config file. Returns a zero Config if the file doesn't
// exist or cannot be parsed.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}

// The resolve helpers pick one setting from, in order of precedence: an
// explicitly set command line flag, the job file, the config file, and the
// flag's built-in default.

func resolveLang(c *cli.Command, job *jobfile.Job, cfg Config) string {
	if c.IsSet("lang") {
		return langName
	}
	if job.Lang != "" {
		return job.Lang
	}
	if cfg.Lang != "" {
		return cfg.Lang
	}
	return langName
}

func resolveDeviceIndex(c *cli.Command, job *jobfile.Job, cfg Config) int {
	if c.IsSet("device") {
		return int(deviceIndex)
	}
	if job.Device != 0 {
		return job.Device
	}
	if cfg.Device != nil {
		return int(*cfg.Device)
	}
	return int(deviceIndex)
}

func resolveIterations(c *cli.Command, job *jobfile.Job, cfg Config) int {
	if c.IsSet("iterations") {
		return int(iterations)
	}
	if job.Iterations != 0 {
		return job.Iterations
	}
	if cfg.Iterations != nil {
		return int(*cfg.Iterations)
	}
	return tuner.DefaultIterations
}

func resolveOutputDir(c *cli.Command, cfg Config) string {
	if c.IsSet("output") {
		return outputDir
	}
	if cfg.OutputDir != "" {
		return cfg.OutputDir
	}
	return outputDir
}
