// Package logging builds the zap loggers used by the goldfinch CLI.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Standard field names. Use these instead of raw strings.
const (
	FieldSubject    = "subject"
	FieldPackage    = "package"
	FieldFile       = "file"
	FieldPath       = "path"
	FieldProvider   = "provider"
	FieldCount      = "count"
	FieldField      = "field"
	FieldVisibility = "visibility"
	FieldPlacement  = "placement"
)

// New returns a console logger writing to stderr. Verbose enables debug
// output with caller information; otherwise only warnings and errors are shown
// so generated-file listings on stdout stay readable.
func New(verbose bool) *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	level := zap.WarnLevel
	var opts []zap.Option
	if verbose {
		level = zap.DebugLevel
		opts = append(opts, zap.AddCaller())
	} else {
		encCfg.CallerKey = ""
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(os.Stderr)),
		level,
	)
	return zap.New(core, opts...)
}

// Named returns logger scoped to a component, or a no-op logger if logger
// is nil.
func Named(logger *zap.Logger, component string) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger.Named(component)
}
