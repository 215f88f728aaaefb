package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Setup configures process-wide logging once at startup. Production runs
// emit JSON for log aggregation; everything else gets readable text.
func Setup() {
	if os.Getenv("ENV") == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		logrus.SetLevel(logrus.InfoLevel)
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
		logrus.SetLevel(logrus.DebugLevel)
	}
}
