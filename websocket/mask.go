package websocket

// maskKey is the 4-byte masking key a client attaches to every frame it
// sends (RFC 6455 Section 5.3).
type maskKey [4]byte

// applyMask XORs data with key in place, cycling the key every 4 bytes.
// The operation is its own inverse: applying it twice with the same key
// restores the original bytes, so the same function masks on encode and
// unmasks on decode.
func applyMask(data []byte, key maskKey) {
	for i := range data {
		data[i] ^= key[i%4]
	}
}
