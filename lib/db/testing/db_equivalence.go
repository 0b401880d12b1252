package testing

import (
	"context"
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"github.com/ValentinKolb/tally/lib/db"
)

// opResult is everything observable about a single operation
type opResult struct {
	Op      string
	Value   []byte
	Found   bool
	Size    int
	Keys    []string
	Values  [][]byte
	Entries []db.Entry
	Failed  bool
}

// RunEquivalenceTests applies the same pseudo random sequence of operations to
// two implementations and fails on the first observable difference.
func RunEquivalenceTests(t *testing.T, nameA string, factoryA DBFactory, nameB string, factoryB DBFactory) {
	t.Run(fmt.Sprintf("%s=%s", nameA, nameB), func(t *testing.T) {
		for _, seed := range []int64{1, 7, 42, 1337} {
			t.Run(fmt.Sprintf("seed-%d", seed), func(t *testing.T) {
				a := open(t, factoryA)
				b := open(t, factoryB)

				opsA := runScript(t, a, seed, 400)
				opsB := runScript(t, b, seed, 400)

				for i := range opsA {
					if !reflect.DeepEqual(opsA[i], opsB[i]) {
						t.Fatalf("step %d (%s) differs:\n  %s: %+v\n  %s: %+v", i, opsA[i].Op, nameA, opsA[i], nameB, opsB[i])
					}
				}
			})
		}
	})
}

// runScript executes n random operations on database and records their results
func runScript(t *testing.T, database db.KVDB, seed int64, n int) []opResult {
	ctx := context.Background()
	rnd := rand.New(rand.NewSource(seed))

	key := func() string {
		// small key space so that overwrites and deletes hit existing keys;
		// "" exercises the invalid key path
		if rnd.Intn(50) == 0 {
			return ""
		}
		return fmt.Sprintf("k%02d", rnd.Intn(24))
	}
	value := func() []byte {
		v := make([]byte, rnd.Intn(8))
		rnd.Read(v)
		return v
	}

	results := make([]opResult, 0, n)
	for i := 0; i < n; i++ {
		var r opResult
		switch op := rnd.Intn(12); op {
		case 0, 1, 2:
			r.Op = "set"
			r.Failed = database.Set(ctx, key(), value()) != nil
		case 3:
			r.Op = "bulkSet"
			entries := make([]db.Entry, rnd.Intn(5))
			for j := range entries {
				entries[j] = db.Entry{Key: key(), Value: value()}
			}
			r.Failed = database.BulkSet(ctx, entries) != nil
		case 4, 5:
			r.Op = "get"
			v, ok, err := database.Get(ctx, key())
			r.Value, r.Found, r.Failed = v, ok, err != nil
		case 6:
			r.Op = "has"
			ok, err := database.Has(ctx, key())
			r.Found, r.Failed = ok, err != nil
		case 7:
			r.Op = "delete"
			r.Failed = database.Delete(ctx, key()) != nil
		case 8:
			r.Op = "bulkDelete"
			keys := make([]string, rnd.Intn(4))
			for j := range keys {
				keys[j] = key()
			}
			r.Failed = database.BulkDelete(ctx, keys) != nil
		case 9:
			r.Op = "size"
			size, err := database.Size(ctx)
			r.Size, r.Failed = size, err != nil
		case 10:
			r.Op = "enumerate"
			keys, err1 := database.Keys(ctx)
			values, err2 := database.Values(ctx)
			entries, err3 := database.Entries(ctx)
			r.Keys, r.Values, r.Entries = keys, values, entries
			r.Failed = err1 != nil || err2 != nil || err3 != nil
		case 11:
			// clearing is rare, otherwise the state never grows
			if rnd.Intn(10) == 0 {
				r.Op = "clear"
				r.Failed = database.Clear(ctx) != nil
			} else {
				r.Op = "noop"
			}
		}
		results = append(results, r)
	}

	entries, err := database.Entries(ctx)
	if err != nil {
		t.Fatalf("Unexpected error during Entries: %v", err)
	}
	results = append(results, opResult{Op: "final", Entries: entries})
	return results
}
