// Package config holds the configuration shared by the picam commands.
//
// Values come from the defaults, then the YAML file, then PICAM_* environment
// variables.  Nested keys use a double underscore, PICAM_RECORDER__ROOT.
package config

import (
	"errors"
	"io"
	"io/fs"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	yml "gopkg.in/yaml.v2"

	"github.com/nasa-jpl/picamlab/picam"
	"github.com/nasa-jpl/picamlab/session"
)

// FileName is the default configuration file
var FileName = "picam.yml"

// EnvPrefix prefixes the environment variables that override the file
const EnvPrefix = "PICAM_"

// Recorder configures the image recorder
type Recorder struct {
	// Root is the root folder to write to
	Root string `yaml:"Root"`

	// Prefix is the filename prefix to use
	Prefix string `yaml:"Prefix"`

	// Ext is the file extension, fits or raw
	Ext string `yaml:"Ext"`
}

// Config is the full configuration
type Config struct {
	// Linkage selects how the library is bound, demo or dlopen
	Linkage string `yaml:"Linkage"`

	// Library is the path to libpicam for the dlopen linkage
	Library string `yaml:"Library"`

	// Fallback opens a demo camera when no camera is connected
	Fallback bool `yaml:"Fallback"`

	// FallbackModel is the picam model number of the fallback demo camera
	FallbackModel int `yaml:"FallbackModel"`

	// FallbackSerial is the serial number of the fallback demo camera
	FallbackSerial string `yaml:"FallbackSerial"`

	// Frames is the number of readouts to acquire
	Frames int64 `yaml:"Frames"`

	// ExposureMs is the exposure time in milliseconds
	ExposureMs float64 `yaml:"ExposureMs"`

	// TimeoutMs bounds each acquire or wait, in milliseconds.  Negative waits forever.
	TimeoutMs int `yaml:"TimeoutMs"`

	// MaxTimeouts is how many consecutive timed out waits are tolerated
	MaxTimeouts int `yaml:"MaxTimeouts"`

	// BufferReadouts is the least number of readouts in a circular buffer
	BufferReadouts int `yaml:"BufferReadouts"`

	// BufferBytes is the target size of a circular buffer
	BufferBytes int64 `yaml:"BufferBytes"`

	// MinCameras is the number of cameras the multi camera tools ensure
	MinCameras int `yaml:"MinCameras"`

	// ReportSeconds is the interval between acquisition error summaries, 0 disables them
	ReportSeconds float64 `yaml:"ReportSeconds"`

	// Spinner shows console progress during acquisitions
	Spinner bool `yaml:"Spinner"`

	// Addr is the HTTP listen address
	Addr string `yaml:"Addr"`

	// Root is the HTTP path the camera is mounted at
	Root string `yaml:"Root"`

	// Recorder configures the image recorder of the HTTP server
	Recorder Recorder `yaml:"Recorder"`

	// BootupArgs are parameters set by vendor name when a camera opens
	BootupArgs map[string]interface{} `yaml:"BootupArgs"`
}

// Default returns the default configuration
func Default() Config {
	return Config{
		Linkage:        "demo",
		Library:        "libpicam.so",
		Fallback:       true,
		FallbackModel:  int(session.DefaultFallbackModel),
		FallbackSerial: session.DefaultFallbackSerial,
		Frames:         5,
		ExposureMs:     10,
		TimeoutMs:      5000,
		MaxTimeouts:    3,
		BufferReadouts: 4,
		BufferBytes:    64 << 20,
		MinCameras:     2,
		ReportSeconds:  5,
		Spinner:        true,
		Addr:           ":8000",
		Root:           "/",
		Recorder:       Recorder{Ext: "fits"},
		BootupArgs: map[string]interface{}{
			"AdcAnalogGain": picam.AdcAnalogGainLow,
		},
	}
}

// Load builds the configuration from the defaults, the file at path if it
// exists, and the environment
func Load(path string) (*koanf.Koanf, Config, error) {
	k := koanf.New(".")
	var c Config
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return k, c, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, fs.ErrNotExist) && !strings.Contains(err.Error(), "no such") { // file missing, who cares
				return k, c, err
			}
		}
	}
	keys := map[string]string{}
	for _, key := range k.Keys() {
		keys[strings.ToLower(key)] = key
	}
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		name := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return keys[strings.ReplaceAll(name, "__", ".")]
	}), nil)
	if err != nil {
		return k, c, err
	}
	err = k.Unmarshal("", &c)
	return k, c, err
}

// Write encodes c as YAML
func Write(w io.Writer, c Config) error {
	return yml.NewEncoder(w).Encode(c)
}
