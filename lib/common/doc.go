// Package common provides the configuration and logging utilities shared by
// the tally library packages and the command line interface.
//
// Key Components:
//
//   - StoreConfig: Configuration of a persistent map (engine, database path,
//     bucket, value codec, logging). Validate rejects unsupported values and
//     String renders the configuration in the column layout used by the CLI.
//
//   - Logger: Custom logging implementation that plugs into Dragonboat's
//     logger package (logger.ILogger / logger.SetLoggerFactory) and writes
//     "LEVEL | name | message" lines. Every package obtains its named logger
//     through GetLogger; InitLoggers sets the level of all of them at once.
package common
