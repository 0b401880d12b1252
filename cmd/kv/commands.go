package kv

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ValentinKolb/tally/lib/store"
	"github.com/spf13/cobra"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kvStore.Set(cmd.Context(), args[0], []byte(args[1])); err != nil {
				return err
			}
			fmt.Println("set successfully")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			resp, ok, err := kvStore.Get(cmd.Context(), key)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%v, resp=%s\n", key, ok, resp)
			return nil
		},
	}
	hasCmd = &cobra.Command{
		Use:   "has [key]",
		Short: "Checks if a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			found, err := kvStore.Has(cmd.Context(), key)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%t\n", key, found)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kvStore.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	bulkSetCmd = &cobra.Command{
		Use:   "bulk-set [key=value]...",
		Short: "Sets several key value pairs in one atomic write",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := parsePairs(args)
			if err != nil {
				return err
			}
			if err := kvStore.BulkSetFromMap(cmd.Context(), m); err != nil {
				return err
			}
			fmt.Printf("bulk-set %d keys successfully\n", m.Len())
			return nil
		},
	}
	bulkDelCmd = &cobra.Command{
		Use:   "bulk-del [key]...",
		Short: "Deletes several keys in one atomic write",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kvStore.BulkDelete(cmd.Context(), args...); err != nil {
				return err
			}
			fmt.Println("bulk-del successfully")
			return nil
		},
	}
	keysCmd = &cobra.Command{
		Use:   "keys",
		Short: "Lists all keys in ascending order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			keys, err := kvStore.Keys(cmd.Context())
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Println(k)
			}
			return nil
		},
	}
	valuesCmd = &cobra.Command{
		Use:   "values",
		Short: "Lists all values in key order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			values, err := kvStore.Values(cmd.Context())
			if err != nil {
				return err
			}
			for _, v := range values {
				fmt.Printf("%s\n", v)
			}
			return nil
		},
	}
	entriesCmd = &cobra.Command{
		Use:   "entries",
		Short: "Lists all key value pairs in key order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := kvStore.Entries(cmd.Context())
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%s=%s\n", e.Key, e.Value)
			}
			return nil
		},
	}
	sizeCmd = &cobra.Command{
		Use:   "size",
		Short: "Prints the number of keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := kvStore.Size(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(n)
			return nil
		},
	}
	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Removes all keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := kvStore.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("clear successfully")
			return nil
		},
	}
	destroyCmd = &cobra.Command{
		Use:   "destroy",
		Short: "Erases the table including its storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := kvStore.Destroy(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("destroy successfully")
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints backend statistics as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(kvStore.Info())
		},
	}
)

// parsePairs converts key=value arguments into an ordered map (last write wins)
func parsePairs(args []string) (*store.OrderedMap[[]byte], error) {
	m := store.NewOrderedMap[[]byte]()
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid pair %q, expected key=value", arg)
		}
		m.Set(key, []byte(value))
	}
	return m, nil
}
