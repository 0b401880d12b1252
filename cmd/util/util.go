package util

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ValentinKolb/tally/lib/codec"
	"github.com/ValentinKolb/tally/lib/common"
	"github.com/ValentinKolb/tally/lib/db"
	"github.com/ValentinKolb/tally/lib/db/engines/bolt"
	"github.com/ValentinKolb/tally/lib/db/engines/memory"
	"github.com/ValentinKolb/tally/lib/store"
	"github.com/ValentinKolb/tally/lib/store/pstore"
	"github.com/VictoriaMetrics/metrics"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupStoreFlags adds the flags selecting and configuring the storage backend to a command
func SetupStoreFlags(cmd *cobra.Command) {
	key := "backend"
	cmd.PersistentFlags().String(key, string(common.BackendBolt), WrapString("The storage backend (bolt, memory). The memory backend forgets everything when the command exits"))

	key = "db-path"
	cmd.PersistentFlags().String(key, "tally.db", WrapString("Path of the bolt database file"))

	key = "bucket"
	cmd.PersistentFlags().String(key, "tally", WrapString("The table (bolt bucket) to operate on"))

	key = "codec"
	cmd.PersistentFlags().String(key, string(common.CodecBytes), WrapString("How values are encoded in the database (bytes, json, gob)"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 1, WrapString("How long to wait for the database file lock (in seconds)"))

	key = "no-sync"
	cmd.PersistentFlags().Bool(key, false, WrapString("Skip fsync after each commit (faster, unsafe on power loss)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("The log level (debug, info, warn, error)"))

	key = "metrics"
	cmd.PersistentFlags().Bool(key, false, WrapString("Print the collected store metrics in Prometheus text format when the command finished"))
}

// InitConfig initializes configuration from .env files and environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("tally")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetStoreConfig reads the store configuration from viper
func GetStoreConfig() *common.StoreConfig {
	return &common.StoreConfig{
		Backend:       common.BackendType(strings.ToLower(viper.GetString("backend"))),
		Path:          viper.GetString("db-path"),
		Bucket:        viper.GetString("bucket"),
		TimeoutSecond: viper.GetInt("timeout"),
		NoSync:        viper.GetBool("no-sync"),
		Codec:         common.CodecType(strings.ToLower(viper.GetString("codec"))),
		LogLevel:      viper.GetString("log-level"),
		Metrics:       viper.GetBool("metrics"),
	}
}

// NewDBFactory creates the factory for the backend configured in conf
func NewDBFactory(conf common.StoreConfig) (store.DBFactory, error) {
	switch conf.Backend {
	case common.BackendBolt:
		return func() db.KVDB {
			return bolt.NewBoltDB(&bolt.Options{
				Path:    conf.Path,
				Bucket:  conf.Bucket,
				Timeout: time.Duration(conf.TimeoutSecond) * time.Second,
				NoSync:  conf.NoSync,
			})
		}, nil
	case common.BackendMemory:
		return func() db.KVDB {
			return memory.NewMemoryDB()
		}, nil
	default:
		return nil, fmt.Errorf("unknown backend: %s", conf.Backend)
	}
}

// NewBytesCodec creates the codec for raw command line values configured in conf
func NewBytesCodec(conf common.StoreConfig) (codec.ICodec[[]byte], error) {
	switch conf.Codec {
	case common.CodecBytes:
		return codec.NewBytesCodec(), nil
	case common.CodecJSON:
		return codec.NewJSONCodec[[]byte](), nil
	case common.CodecGob:
		return codec.NewGOBCodec[[]byte](), nil
	default:
		return nil, fmt.Errorf("unknown codec: %s", conf.Codec)
	}
}

// OpenStore validates conf, initializes logging and returns an initialized store
func OpenStore[V any](ctx context.Context, conf common.StoreConfig, c codec.ICodec[V]) (store.IStore[V], error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if err := common.InitLoggers(conf); err != nil {
		return nil, err
	}

	factory, err := NewDBFactory(conf)
	if err != nil {
		return nil, err
	}

	s := pstore.NewPersistentStore[V](factory, c)
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	common.GetLogger(common.LogCLI).Debugf("opened store: %s", conf.String())
	return s, nil
}

// WriteMetrics writes all collected metrics in Prometheus text format to w if enabled in conf
func WriteMetrics(w io.Writer, conf common.StoreConfig) {
	if conf.Metrics {
		metrics.WritePrometheus(w, false)
	}
}
