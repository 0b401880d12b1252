// Package util provides shared helpers for the tally command line: help text
// wrapping, the storage flags, configuration loading (flags, TALLY_ environment
// variables and .env files) and opening a store from that configuration.
package util
