package websocket

import "io"

// IO is the byte-oriented read/write collaborator the host provides
// (spec.md §6). A Read of 0 bytes with a nil error means "nothing
// available yet, try again"; a Read of 0 bytes with io.EOF means the
// stream has ended. Write may perform a partial write; the caller keeps
// calling until every byte is accepted.
type IO interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
}

// Rand is the random-byte collaborator the host provides (spec.md §6),
// used only during the handshake (Sec-WebSocket-Key) and, for a client
// encoder, once per outgoing frame (the masking key).
type Rand interface {
	Fill(p []byte)
}

// frameReader pairs a Decoder with the caller-owned read buffer and the
// IO collaborator, implementing spec.md §2's "pull a message" loop: read
// more bytes, ask the decoder for the longest complete prefix, compact
// whatever wasn't consumed. It is the read side of a Conn.
type frameReader struct {
	src    IO
	dec    *Decoder
	buf    []byte
	filled int
	used   int // bytes of the last returned frame, compacted away by the next call
}

// next returns the next frame, blocking (suspending on src.Read) until one
// is available. It returns io.EOF once the underlying stream ends cleanly
// with no partial frame pending. The returned frame's payload stays valid
// until the following call, which compacts the buffer first.
func (fr *frameReader) next() (Frame, error) {
	if fr.used > 0 {
		copy(fr.buf, fr.buf[fr.used:fr.filled])
		fr.filled -= fr.used
		fr.used = 0
	}
	for {
		f, consumed, err := fr.dec.Decode(fr.buf[:fr.filled])
		if err != nil {
			return Frame{}, err
		}
		if consumed > 0 {
			fr.used = consumed
			return f, nil
		}

		if fr.filled == len(fr.buf) {
			return Frame{}, ErrBufferTooSmall
		}
		n, readErr := fr.src.Read(fr.buf[fr.filled:])
		fr.filled += n
		if readErr != nil {
			if readErr == io.EOF && n > 0 {
				continue
			}
			return Frame{}, readErr
		}
	}
}

// pendingBytes reports how many undecoded bytes are currently buffered —
// the Go rendition of spec.md §4.7's framable_bytes().
func (fr *frameReader) pendingBytes() int { return fr.filled - fr.used }

// frameWriter pairs an Encoder with the caller-owned write buffer and the
// IO collaborator: encode one frame into buf, then flush every byte of it
// to dst before returning. It is the write side of a Conn.
type frameWriter struct {
	dst IO
	enc *Encoder
	buf []byte
}

func (fw *frameWriter) writeFrame(fin bool, opcode OpCode, payloadLen int, key maskKey, write PayloadWriter) error {
	n, err := fw.enc.Encode(fw.buf, fin, opcode, payloadLen, key, write)
	if err != nil {
		return err
	}
	return writeAll(fw.dst, fw.buf[:n])
}
