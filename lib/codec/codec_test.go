package codec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name   string
	Count  int
	Tags   []string
	Nested map[string]float64
	Blob   []byte
}

func sampleRecord() record {
	return record{
		Name:   "signal",
		Count:  42,
		Tags:   []string{"a", "b"},
		Nested: map[string]float64{"x": 1.5},
		Blob:   []byte{0, 1, 2, 3},
	}
}

// TestRoundTrip checks that every codec returns a deep-equal value
func TestRoundTrip(t *testing.T) {
	structCodecs := map[string]ICodec[record]{
		"JSON": NewJSONCodec[record](),
		"GOB":  NewGOBCodec[record](),
	}
	for name, c := range structCodecs {
		t.Run(name, func(t *testing.T) {
			b, err := c.Encode(sampleRecord())
			require.NoError(t, err)
			v, err := c.Decode(b)
			require.NoError(t, err)
			assert.Equal(t, sampleRecord(), v)
		})
	}

	byteCodecs := map[string]ICodec[[]byte]{
		"JSON":  NewJSONCodec[[]byte](),
		"GOB":   NewGOBCodec[[]byte](),
		"Bytes": NewBytesCodec(),
	}
	for name, c := range byteCodecs {
		t.Run(name+"/buffer", func(t *testing.T) {
			b, err := c.Encode([]byte{0, 1, 2, 3})
			require.NoError(t, err)
			v, err := c.Decode(b)
			require.NoError(t, err)
			assert.Equal(t, []byte{0, 1, 2, 3}, v)
		})
	}

	t.Run("JSON/number", func(t *testing.T) {
		c := NewJSONCodec[float64]()
		b, err := c.Encode(3.25)
		require.NoError(t, err)
		v, err := c.Decode(b)
		require.NoError(t, err)
		assert.Equal(t, 3.25, v)
	})

	t.Run("GOB/string", func(t *testing.T) {
		c := NewGOBCodec[string]()
		b, err := c.Encode("hello")
		require.NoError(t, err)
		v, err := c.Decode(b)
		require.NoError(t, err)
		assert.Equal(t, "hello", v)
	})
}

type node struct {
	Next *node
}

// TestInvalidValues checks that values without a representation fail on Encode
func TestInvalidValues(t *testing.T) {
	_, err := NewJSONCodec[chan int]().Encode(make(chan int))
	assert.Error(t, err)

	_, err = NewJSONCodec[float64]().Encode(math.NaN())
	assert.Error(t, err)

	cyclic := &node{}
	cyclic.Next = cyclic
	_, err = NewJSONCodec[*node]().Encode(cyclic)
	assert.Error(t, err)

	_, err = NewGOBCodec[func()]().Encode(func() {})
	assert.Error(t, err)
}

// TestCorruptInput checks that garbage fails on Decode instead of producing a value
func TestCorruptInput(t *testing.T) {
	_, err := NewJSONCodec[record]().Decode([]byte("{not json"))
	assert.Error(t, err)

	_, err = NewGOBCodec[record]().Decode([]byte("garbage data"))
	assert.Error(t, err)
}

func TestBytesCodecCopies(t *testing.T) {
	c := NewBytesCodec()
	in := []byte("abc")
	out, err := c.Encode(in)
	require.NoError(t, err)
	in[0] = 'X'
	assert.Equal(t, []byte("abc"), out)

	empty, err := c.Decode(nil)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestNames(t *testing.T) {
	assert.Equal(t, "json", NewJSONCodec[int]().Name())
	assert.Equal(t, "gob", NewGOBCodec[int]().Name())
	assert.Equal(t, "bytes", NewBytesCodec().Name())
}
