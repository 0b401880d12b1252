package codec

// ICodec converts values of type V to the bytes stored by a db.KVDB and back.
// Implementations must be stateless and safe for concurrent use.
type ICodec[V any] interface {
	// Encode serializes a value into a byte array
	// It returns an error if the value cannot be represented (e.g. cycles, channels, functions)
	Encode(v V) ([]byte, error)
	// Decode deserializes a byte array into a value
	Decode(b []byte) (V, error)
	// Name returns a short identifier of the encoding (used in logs and metrics)
	Name() string
}
