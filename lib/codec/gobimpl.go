package codec

import (
	"bytes"
	"encoding/gob"
)

// NewGOBCodec creates a new codec using Go's binary gob format
func NewGOBCodec[V any]() ICodec[V] {
	return &gobCodecImpl[V]{}
}

// gobCodecImpl implements the ICodec interface using gob encoding
type gobCodecImpl[V any] struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.ICodec)
// --------------------------------------------------------------------------

func (g gobCodecImpl[V]) Encode(v V) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g gobCodecImpl[V]) Decode(b []byte) (V, error) {
	var v V
	dec := gob.NewDecoder(bytes.NewReader(b))
	err := dec.Decode(&v)
	return v, err
}

func (g gobCodecImpl[V]) Name() string {
	return "gob"
}
