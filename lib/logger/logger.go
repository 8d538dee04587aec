package logger

import (
	"io"

	log "github.com/sirupsen/logrus"
)

// New. create logger yang dipakai semua komponen (disk manager, buffer pool, lock manager, executor).
func New(level string, out io.Writer) *log.Logger {
	lg := log.New()
	lg.SetFormatter(&log.TextFormatter{
		DisableLevelTruncation: true,
	})
	if out != nil {
		lg.SetOutput(out)
	}

	ll, err := log.ParseLevel(level)
	if err != nil {
		ll = log.InfoLevel
	}
	lg.SetLevel(ll)
	return lg
}

// NewDiscard. logger buat test, output dibuang.
func NewDiscard() *log.Logger {
	lg := log.New()
	lg.SetOutput(io.Discard)
	return lg
}
