package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FileName is the log file created inside the configured output directory.
const FileName = "app.log"

// New builds a zap logger. format "console" selects the development encoder,
// anything else json. Unknown levels fall back to info. When outputPath is
// set, logs go to outputPath/app.log; echo additionally writes to stderr.
func New(level, format, outputPath string, echo bool) (*zap.Logger, error) {
	logLevel := zap.NewAtomicLevel()
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		logLevel.SetLevel(zap.InfoLevel)
	}

	var zapConfig zap.Config
	if format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		zapConfig.Encoding = "console"
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.Encoding = "json"
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zapConfig.Level = logLevel

	var outputs []string
	if outputPath != "" {
		if err := os.MkdirAll(outputPath, 0o755); err != nil {
			return nil, err
		}
		outputs = append(outputs, filepath.Join(outputPath, FileName))
	}
	if echo || len(outputs) == 0 {
		outputs = append(outputs, "stderr")
	}
	zapConfig.OutputPaths = outputs
	zapConfig.ErrorOutputPaths = outputs

	return zapConfig.Build()
}
