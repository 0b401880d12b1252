package memory

import (
	"context"
	"testing"

	"github.com/ValentinKolb/tally/lib/db"
	dbtesting "github.com/ValentinKolb/tally/lib/db/testing"
)

func factory(testing.TB) db.KVDB {
	return NewMemoryDB()
}

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "MemoryDB", factory)
}

func Benchmark(b *testing.B) {
	dbtesting.RunKVDBBenchmarks(b, "MemoryDB", factory)
}

func TestGetInfo(t *testing.T) {
	ctx := context.Background()
	database := NewMemoryDB()
	if err := database.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	for _, k := range []string{"a", "b"} {
		if err := database.Set(ctx, k, []byte("value")); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	info := database.GetInfo()
	if info.DbType != db.ImplMemory || info.Durable {
		t.Errorf("Unexpected info: %+v", info)
	}
	if info.Keys != 2 {
		t.Errorf("Expected 2 keys in info, got %d", info.Keys)
	}
}
