package jsonfield

import "github.com/rs/zerolog"

var logger = zerolog.Nop()

// SetLogger routes the package's debug events to l. The default discards them.
func SetLogger(l zerolog.Logger) { logger = l.With().Str("component", "jsonfield").Logger() }
