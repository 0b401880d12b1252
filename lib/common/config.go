package common

import (
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Store configuration struct
// --------------------------------------------------------------------------

type BackendType string

const (
	BackendBolt   BackendType = "bolt"
	BackendMemory BackendType = "memory"
)

type CodecType string

const (
	CodecJSON  CodecType = "json"
	CodecGob   CodecType = "gob"
	CodecBytes CodecType = "bytes"
)

// StoreConfig holds all parameters needed to open a persistent map.
type StoreConfig struct {
	// Backend selects the storage engine
	Backend BackendType

	// bolt parameters
	Path          string
	Bucket        string
	TimeoutSecond int
	NoSync        bool

	// Codec selects how values are encoded
	Codec CodecType

	// Logging configuration
	LogLevel string

	// Metrics controls whether collected metrics are dumped after a command
	Metrics bool
}

// Validate checks the configuration for unsupported values.
func (c *StoreConfig) Validate() error {
	switch c.Backend {
	case BackendBolt:
		if c.Path == "" {
			return fmt.Errorf("a database path is required for the %s backend", c.Backend)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("invalid backend %q (expected one of: bolt, memory)", c.Backend)
	}

	switch c.Codec {
	case CodecJSON, CodecGob, CodecBytes:
	default:
		return fmt.Errorf("invalid codec %q (expected one of: json, gob, bytes)", c.Codec)
	}

	if c.Bucket == "" {
		return fmt.Errorf("bucket must not be empty")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// WithBucket returns a copy of the configuration addressing another bucket.
func (c StoreConfig) WithBucket(bucket string) StoreConfig {
	c.Bucket = bucket
	return c
}

// String returns a formatted string representation of the configuration
func (c *StoreConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Store")
	addField("Backend", string(c.Backend))
	addField("Bucket", c.Bucket)
	addField("Codec", string(c.Codec))

	if c.Backend == BackendBolt {
		addSection("Storage")
		addField("Database Path", c.Path)
		addField("Open Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
		addField("No Sync", fmt.Sprintf("%t", c.NoSync))
	}

	addSection("Logging")
	addField("Log Level", c.LogLevel)
	addField("Metrics", fmt.Sprintf("%t", c.Metrics))

	return sb.String()
}
