package logger

import (
	"fmt"

	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
)

// Options configures the process logger.
type Options struct {
	// Level is one of debug, info, warn, error, dpanic, panic and fatal.
	Level string `json:"level,omitempty" mapstructure:"level"`
	// Format is console or json.
	Format string `json:"format,omitempty" mapstructure:"format"`
	// EnableColor only applies to the console format.
	EnableColor       bool     `json:"enable-color" mapstructure:"enable-color"`
	DisableCaller     bool     `json:"disable-caller,omitempty" mapstructure:"disable-caller"`
	DisableStacktrace bool     `json:"disable-stacktrace,omitempty" mapstructure:"disable-stacktrace"`
	OutputPaths       []string `json:"output-paths,omitempty" mapstructure:"output-paths"`
}

func NewOptions() *Options {
	return &Options{
		Level:       zapcore.InfoLevel.String(),
		Format:      "json",
		OutputPaths: []string{"stdout"},
	}
}

// Validate reports every invalid field.
func (o *Options) Validate() []error {
	var errs []error
	if _, err := zapcore.ParseLevel(o.Level); err != nil {
		errs = append(errs, err)
	}
	if o.Format != "console" && o.Format != "json" {
		errs = append(errs, fmt.Errorf("log format %q: want console or json", o.Format))
	}
	if len(o.OutputPaths) == 0 {
		errs = append(errs, fmt.Errorf("log output paths are empty"))
	}
	return errs
}

func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Level, "log.level", o.Level, "Minimum log output `LEVEL`.")
	fs.StringVar(&o.Format, "log.format", o.Format, "Log output `FORMAT`, console or json.")
	fs.BoolVar(&o.EnableColor, "log.enable-color", o.EnableColor, "Enable ANSI colors in console format logs.")
	fs.BoolVar(&o.DisableCaller, "log.disable-caller", o.DisableCaller, "Disable output of caller information in the log.")
	fs.BoolVar(&o.DisableStacktrace, "log.disable-stacktrace", o.DisableStacktrace,
		"Disable stack traces for messages at or above panic level.")
	fs.StringSliceVar(&o.OutputPaths, "log.output-paths", o.OutputPaths, "Output paths of log.")
}
