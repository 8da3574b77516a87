package logger

import (
	"errors"

	"github.com/rollbar/rollbar-go"
	"go.uber.org/zap/zapcore"

	"github.com/dat-nglt/cusc-schedule/pkg/config"
)

// ConfigureRollbar sets the process-wide rollbar client options.
func ConfigureRollbar(cfg *config.Config) {
	rollbar.SetToken(cfg.Log.RollbarToken)
	rollbar.SetEnvironment(cfg.Env)
	rollbar.SetServerRoot("github.com/dat-nglt/cusc-schedule")
	rollbar.SetEnabled(true)
}

// RollbarCore is a zapcore.Core that forwards entries at or above its level
// to rollbar, carrying structured fields as custom data.
type RollbarCore struct {
	zapcore.LevelEnabler
	fields []zapcore.Field
	send   func(level string, err error, msg string, extras map[string]interface{})
}

// NewRollbarCore builds a core reporting entries at or above min.
func NewRollbarCore(min zapcore.Level) *RollbarCore {
	return &RollbarCore{LevelEnabler: min, send: sendToRollbar}
}

func (c *RollbarCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = append(append([]zapcore.Field(nil), c.fields...), fields...)
	return &clone
}

func (c *RollbarCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *RollbarCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	var cause error
	for _, f := range append(c.fields, fields...) {
		if f.Type == zapcore.ErrorType {
			if err, ok := f.Interface.(error); ok {
				cause = err
			}
		}
	}
	if cause == nil {
		cause = errors.New(entry.Message)
	}

	c.send(rollbarLevel(entry.Level), cause, entry.Message, enc.Fields)
	return nil
}

func (c *RollbarCore) Sync() error {
	rollbar.Wait()
	return nil
}

func rollbarLevel(level zapcore.Level) string {
	switch level {
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return rollbar.CRIT
	case zapcore.ErrorLevel:
		return rollbar.ERR
	case zapcore.WarnLevel:
		return rollbar.WARN
	default:
		return rollbar.INFO
	}
}

func sendToRollbar(level string, err error, msg string, extras map[string]interface{}) {
	extras["message"] = msg
	rollbar.ErrorWithExtras(level, err, extras)
}
