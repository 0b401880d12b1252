package ingest

import (
	"encoding/json"

	"github.com/ValentinKolb/tally/cmd/util"
	"github.com/ValentinKolb/tally/lib/codec"
	"github.com/ValentinKolb/tally/lib/ingest"
	"github.com/ValentinKolb/tally/lib/uniqset"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// IngestCmd represents the ingest command
var IngestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Count signal ids read from stdin, suppressing repetitions",
	Long: `Reads one signal id per line from stdin. An id that was already seen within
the suppression window is only counted as suppressed. Every other id
increments its counter in the persistent map and is added to the report.

At EOF a JSON report is printed and the list of unique ids is stored in the
report bucket under the key "` + ingest.ReportKey + `".`,
	Args: cobra.NoArgs,
	RunE: run,
}

func init() {
	// Add storage flags
	util.SetupStoreFlags(IngestCmd)

	// Add ingest flags
	key := "window"
	IngestCmd.Flags().Duration(key, ingest.DefaultWindow, util.WrapString("How long a signal suppresses repetitions of itself"))
	key = "counters-bucket"
	IngestCmd.Flags().String(key, "counters", util.WrapString("The table holding the signal counters"))
	key = "report-bucket"
	IngestCmd.Flags().String(key, "reports", util.WrapString("The table holding the last report"))
}

func run(cmd *cobra.Command, _ []string) (err error) {
	ctx := cmd.Context()

	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	conf := util.GetStoreConfig()

	// counters and report always use JSON, the codec flag only applies to kv commands
	counters, err := util.OpenStore[uint64](ctx, conf.WithBucket(viper.GetString("counters-bucket")), codec.NewJSONCodec[uint64]())
	if err != nil {
		return err
	}
	defer func() {
		if uerr := counters.Unload(); err == nil {
			err = uerr
		}
	}()

	reports, err := util.OpenStore[*uniqset.Set[string]](ctx, conf.WithBucket(viper.GetString("report-bucket")), codec.NewJSONCodec[*uniqset.Set[string]]())
	if err != nil {
		return err
	}
	defer func() {
		if uerr := reports.Unload(); err == nil {
			err = uerr
		}
	}()

	in := ingest.New(counters, reports, ingest.Options{Window: viper.GetDuration("window")})
	defer in.Close()

	if err := in.Ingest(ctx, cmd.InOrStdin()); err != nil {
		return err
	}

	report, err := in.Flush(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if err := enc.Encode(report); err != nil {
		return err
	}

	util.WriteMetrics(cmd.OutOrStdout(), *conf)
	return nil
}
