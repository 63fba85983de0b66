// Package wsrand supplies the websocket.Rand collaborator backed by
// crypto/rand, for hosts that have a real source of entropy (a goroutine
// server, a CLI tool) rather than the hardware RNG a freestanding target
// would use.
package wsrand

import "crypto/rand"

// Source is a websocket.Rand backed by crypto/rand.Reader.
type Source struct{}

// Fill fills p with cryptographically random bytes. It panics if the
// system entropy source is unavailable, since a process with no working
// crypto/rand is not in a state any caller can usefully recover from.
func (Source) Fill(p []byte) {
	if _, err := rand.Read(p); err != nil {
		panic("wsrand: crypto/rand unavailable: " + err.Error())
	}
}
