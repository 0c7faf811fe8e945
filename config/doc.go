// Package config loads and validates the datalogger service configuration.
//
// Configuration is layered: compiled-in defaults, then an optional JSON
// config file, then DATALOGGER_* environment variable overrides for
// operational knobs (ports, NATS URL, credentials, log level). The merged
// result is validated before use; validation failures wrap ErrInvalidConfig
// or ErrMissingConfig so they classify as fatal at startup.
//
//	cfg, err := config.Load("datalogger.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// File reads go through path and size validation, and JSON nesting depth is
// bounded before parsing, since config paths can come from the command line.
package config
