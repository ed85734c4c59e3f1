// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: colored console output
//
// Components receive a named *zap.Logger at construction:
//
//	logger := logging.NewDefault()
//	guests := guest.NewManager(guest.Options{Logger: logger.Component("guests")})
package logging
