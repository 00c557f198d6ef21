package client

import (
	"io"
	"sort"

	"github.com/hashicorp/go-hclog"

	"github.com/fivetwenty-io/redmine-ws/pkg/redmine"
)

// HCLogger adapts an hclog.Logger to redmine.Logger.
type HCLogger struct {
	logger hclog.Logger
}

// NewHCLogger wraps logger.
func NewHCLogger(logger hclog.Logger) *HCLogger {
	return &HCLogger{logger: logger}
}

// NewDefaultLogger writes human-readable logs to w at the given level
// ("trace", "debug", "info", "warn", "error").
func NewDefaultLogger(w io.Writer, level string) *HCLogger {
	return NewHCLogger(hclog.New(&hclog.LoggerOptions{
		Name:   "redmine",
		Output: w,
		Level:  hclog.LevelFromString(level),
	}))
}

func (l *HCLogger) Debug(msg string, fields map[string]interface{}) {
	l.logger.Debug(msg, flatten(fields)...)
}

func (l *HCLogger) Info(msg string, fields map[string]interface{}) {
	l.logger.Info(msg, flatten(fields)...)
}

func (l *HCLogger) Warn(msg string, fields map[string]interface{}) {
	l.logger.Warn(msg, flatten(fields)...)
}

func (l *HCLogger) Error(msg string, fields map[string]interface{}) {
	l.logger.Error(msg, flatten(fields)...)
}

// flatten turns a field map into hclog's alternating key/value form.
func flatten(fields map[string]interface{}) []interface{} {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	args := make([]interface{}, 0, len(fields)*2)
	for _, k := range keys {
		args = append(args, k, fields[k])
	}

	return args
}

var _ redmine.Logger = (*HCLogger)(nil)
