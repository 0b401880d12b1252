package kv

import (
	"github.com/ValentinKolb/tally/cmd/util"
	"github.com/ValentinKolb/tally/lib/common"
	"github.com/ValentinKolb/tally/lib/store"
	"github.com/spf13/cobra"
)

var (
	kvStore  store.IStore[[]byte]
	kvConfig *common.StoreConfig

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Perform operations on a persistent map",
		PersistentPreRunE:  setupKVStore,
		PersistentPostRunE: teardownKVStore,
	}
)

func init() {
	// Add storage flags to the KV command
	util.SetupStoreFlags(KeyValueCommands)

	// Add subcommands
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(hasCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(bulkSetCmd)
	KeyValueCommands.AddCommand(bulkDelCmd)
	KeyValueCommands.AddCommand(keysCmd)
	KeyValueCommands.AddCommand(valuesCmd)
	KeyValueCommands.AddCommand(entriesCmd)
	KeyValueCommands.AddCommand(sizeCmd)
	KeyValueCommands.AddCommand(clearCmd)
	KeyValueCommands.AddCommand(destroyCmd)
	KeyValueCommands.AddCommand(infoCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupKVStore opens the configured store
func setupKVStore(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	kvConfig = util.GetStoreConfig()

	c, err := util.NewBytesCodec(*kvConfig)
	if err != nil {
		return err
	}

	kvStore, err = util.OpenStore[[]byte](cmd.Context(), *kvConfig, c)
	return err
}

// teardownKVStore unloads the store and prints the metrics if requested
func teardownKVStore(cmd *cobra.Command, _ []string) error {
	if kvStore == nil {
		return nil
	}
	err := kvStore.Unload()
	util.WriteMetrics(cmd.OutOrStdout(), *kvConfig)
	return err
}
