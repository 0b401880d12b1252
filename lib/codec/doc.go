// Package codec provides the value encodings used by the persistent map. A
// codec turns the typed values handled by store.IStore into the opaque bytes
// stored by a db.KVDB engine and back.
//
// Because the same codec runs in front of every engine, a value read back from
// the durable engine has exactly the same Go type and content as one read back
// from the volatile engine.
//
// Implementations:
//
//   - jsonCodecImpl (NewJSONCodec): encoding/json. Human readable on disk and the
//     default for structured values. Values that JSON cannot represent (channels,
//     functions, pointer cycles, NaN) fail with an error on Encode.
//
//   - gobCodecImpl (NewGOBCodec): encoding/gob. Compact and type exact for Go
//     values (e.g. integers keep their width), but only readable by Go.
//
//   - bytesCodecImpl (NewBytesCodec): stores byte slices unchanged. Used for
//     binary buffers and by the command line interface.
package codec
