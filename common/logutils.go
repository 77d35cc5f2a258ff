package common

import (
	"os"

	"github.com/sirupsen/logrus"
)

const ServiceName = "leica"

func init() {
	logger := logrus.StandardLogger()
	logger.Out = os.Stdout
	logger.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	logger.AddHook(&DefaultFieldsHook{})
}

type DefaultFieldsHook struct {
}

func (hook *DefaultFieldsHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (hook *DefaultFieldsHook) Fire(e *logrus.Entry) error {
	if _, exists := e.Data["service"]; !exists {
		e.Data["service"] = ServiceName
	}
	return nil
}

// ConfigureLogLevel sets the standard logger level, unknown values keep the current one.
func ConfigureLogLevel(level string) {
	if level == "" {
		return
	}
	l, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.Warnf("unknown log level %q, keep %s", level, logrus.GetLevel())
		return
	}
	logrus.SetLevel(l)
}
