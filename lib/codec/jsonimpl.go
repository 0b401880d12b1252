package codec

import (
	"encoding/json"
)

// NewJSONCodec creates a new codec using json encoding
func NewJSONCodec[V any]() ICodec[V] {
	return &jsonCodecImpl[V]{}
}

// jsonCodecImpl implements the ICodec interface using json encoding
type jsonCodecImpl[V any] struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.ICodec)
// --------------------------------------------------------------------------

func (j jsonCodecImpl[V]) Encode(v V) ([]byte, error) {
	return json.Marshal(v)
}

func (j jsonCodecImpl[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}

func (j jsonCodecImpl[V]) Name() string {
	return "json"
}
