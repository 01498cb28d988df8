package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New returns the logger shared by the peer and the relay. The level comes
// from UNISHARE_LOG_LEVEL when set, otherwise info.
func New() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})

	level, err := logrus.ParseLevel(os.Getenv("UNISHARE_LOG_LEVEL"))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	return log
}
