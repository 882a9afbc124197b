package daemon

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// openLogger builds the daemon logger: JSON lines appended to the log
// file, mirrored to a console writer on stderr when running in the
// foreground.
func openLogger(logFile string, foreground bool) (zerolog.Logger, func(), error) {
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), func() {}, eris.Wrapf(err, "failed to open log file: %s", logFile)
	}

	var out io.Writer = file
	if foreground {
		console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
		out = zerolog.MultiLevelWriter(file, console)
	}

	level := zerolog.InfoLevel
	if env := os.Getenv("LORE_LOG_LEVEL"); env != "" {
		if parsed, err := zerolog.ParseLevel(env); err == nil {
			level = parsed
		}
	}

	log := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return log, func() { file.Close() }, nil
}
