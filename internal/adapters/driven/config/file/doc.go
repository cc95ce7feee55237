// Package file loads engine settings from a TOML config file layered over
// built-in defaults, with environment variables supplying credentials.
package file
