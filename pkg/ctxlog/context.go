package ctxlog

import (
	"github.com/rs/zerolog"
)

func Op(logger zerolog.Logger, op string) zerolog.Logger {
	return logger.With().Str("op", op).Logger()
}

// Selection tags every entry with the selection name it belongs to.
func Selection(logger zerolog.Logger, selection string) zerolog.Logger {
	return logger.With().Str("selection", selection).Logger()
}
