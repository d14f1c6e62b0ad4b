// Package logtrace configures structured logging for the catalog service.
// All components log through zerolog, with request and catalog context
// attached by middleware.
package logtrace

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the global logger: JSON to stderr with Unix
// timestamps and the service name on every event. Pretty switches to the
// human-readable console writer for interactive runs of the pipeline.
func InitLogger(pretty bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	var out io.Writer = os.Stderr
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Str("service", "catalogd").Logger()
}
