// Package startup handles service configuration and startup logging.
//
// Configuration comes from environment variables, optionally seeded from a
// .env file. The package also owns the startup banner, route logging and
// the shutdown log helpers used by main.
package startup
