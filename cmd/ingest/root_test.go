package ingest

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWritesReportAndMetricsToCommandOutput(t *testing.T) {
	var out bytes.Buffer
	IngestCmd.SetIn(strings.NewReader("a\nb\na\n"))
	IngestCmd.SetOut(&out)
	IngestCmd.SetArgs([]string{"--backend", "memory", "--metrics", "--log-level", "error"})
	t.Cleanup(func() {
		IngestCmd.SetIn(nil)
		IngestCmd.SetOut(nil)
		IngestCmd.SetArgs(nil)
	})

	require.NoError(t, IngestCmd.Execute())

	got := out.String()
	assert.Contains(t, got, `"accepted":2`)
	assert.Contains(t, got, `"suppressed":1`)
	assert.Contains(t, got, `"unique":["a","b"]`)
	assert.Contains(t, got, "tally_store_ops_total")
}
