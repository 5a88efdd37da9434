package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Log is the shared logger. Before Configure is called it writes to stderr
// at info level, which is what tests and early startup errors get.
var Log = logrus.New()

// Configure routes the shared logger to the given log file, mirroring
// entries to stderr. The returned closer is the log file handle.
func Configure(logFileName string, verbose bool) (io.Closer, error) {
	file, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, err
	}

	Log.SetOutput(io.MultiWriter(file, os.Stderr))
	if verbose {
		Log.SetLevel(logrus.DebugLevel)
	} else {
		Log.SetLevel(logrus.InfoLevel)
	}

	return file, nil
}
