package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/tally/lib/common"
	"github.com/ValentinKolb/tally/lib/store"
	"github.com/ValentinKolb/tally/lib/ttlset"
	"github.com/ValentinKolb/tally/lib/uniqset"
)

// ReportKey is the key the last report is stored under
const ReportKey = "last-ingest"

// DefaultWindow is used when Options.Window is not set
const DefaultWindow = 30 * time.Second

// Report summarizes one ingest run
type Report struct {
	Accepted   int                 `json:"accepted"`
	Suppressed int                 `json:"suppressed"`
	Unique     *uniqset.Set[string] `json:"unique"`
}

// Options configures an Ingestor
type Options struct {
	// Window is how long a signal suppresses repetitions of itself
	Window time.Duration
	// Scheduler drives the suppression window (nil = real timers)
	Scheduler ttlset.IScheduler
}

// Ingestor counts signals while suppressing repetitions within a time window.
// Counters survive restarts when the counters store is durable.
type Ingestor struct {
	counters store.IStore[uint64]
	reports  store.IStore[*uniqset.Set[string]]
	window   time.Duration
	seen     *ttlset.Set[string]

	// mu guards the report, the uniqueness set is not synchronized
	mu     sync.Mutex
	report Report
}

// New creates an Ingestor. Both stores must be initialized by the caller.
func New(counters store.IStore[uint64], reports store.IStore[*uniqset.Set[string]], opts Options) *Ingestor {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	return &Ingestor{
		counters: counters,
		reports:  reports,
		window:   opts.Window,
		seen: ttlset.New(ttlset.Options[string]{
			Scheduler: opts.Scheduler,
			OnExpire: func(id string) {
				common.GetLogger(common.LogIngest).Debugf("suppression window of %q closed", id)
			},
		}),
		report: Report{Unique: uniqset.New[string]()},
	}
}

// Observe processes one signal id. It returns false if the id was suppressed
// because it was already seen within the window.
func (i *Ingestor) Observe(ctx context.Context, id string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.seen.Has(id) {
		i.report.Suppressed++
		return false, nil
	}

	n, _, err := i.counters.Get(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to read counter of %q: %w", id, err)
	}
	if err := i.counters.Set(ctx, id, n+1); err != nil {
		return false, fmt.Errorf("failed to write counter of %q: %w", id, err)
	}

	// only mark as seen once counted, a failed write can be retried
	i.seen.Add(id, i.window)
	i.report.Unique.Add(id)
	i.report.Accepted++
	return true, nil
}

// Ingest reads one signal id per line from r until EOF. Blank lines are skipped.
func (i *Ingestor) Ingest(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		id := strings.TrimSpace(scanner.Text())
		if id == "" {
			continue
		}
		if _, err := i.Observe(ctx, id); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// Report returns a copy of the current report
func (i *Ingestor) Report() Report {
	i.mu.Lock()
	defer i.mu.Unlock()
	return Report{
		Accepted:   i.report.Accepted,
		Suppressed: i.report.Suppressed,
		Unique:     uniqset.New(i.report.Unique.Values()...),
	}
}

// Flush stores the current report under ReportKey and returns it
func (i *Ingestor) Flush(ctx context.Context) (Report, error) {
	report := i.Report()
	if err := i.reports.Set(ctx, ReportKey, report.Unique); err != nil {
		return report, fmt.Errorf("failed to store report: %w", err)
	}
	common.GetLogger(common.LogIngest).Infof("accepted %d, suppressed %d, %d unique signals",
		report.Accepted, report.Suppressed, report.Unique.Size())
	return report, nil
}

// Close cancels all pending suppression timers
func (i *Ingestor) Close() {
	i.seen.Clear()
}
