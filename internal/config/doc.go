// Package config loads the EnvioScout JSON configuration, layers .env and
// process environment overrides on top, and fills defaults for every section.
package config
