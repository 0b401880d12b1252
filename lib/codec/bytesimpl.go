package codec

// NewBytesCodec creates a codec that stores byte slices unchanged
func NewBytesCodec() ICodec[[]byte] {
	return &bytesCodecImpl{}
}

// bytesCodecImpl implements the ICodec interface without any framing.
// Both directions copy, so neither side aliases the other's memory.
type bytesCodecImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.ICodec)
// --------------------------------------------------------------------------

func (c bytesCodecImpl) Encode(v []byte) ([]byte, error) {
	return append(make([]byte, 0, len(v)), v...), nil
}

func (c bytesCodecImpl) Decode(b []byte) ([]byte, error) {
	return append(make([]byte, 0, len(b)), b...), nil
}

func (c bytesCodecImpl) Name() string {
	return "bytes"
}
