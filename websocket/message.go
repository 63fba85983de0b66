package websocket

import (
	"unicode/utf8"
	"unsafe"
)

// MessageKind is the application-level message tag of spec.md §3.
type MessageKind uint8

const (
	MessageText MessageKind = iota
	MessageBinary
	MessagePing
	MessagePong
	MessageClose
)

func (k MessageKind) String() string {
	switch k {
	case MessageText:
		return "text"
	case MessageBinary:
		return "binary"
	case MessagePing:
		return "ping"
	case MessagePong:
		return "pong"
	case MessageClose:
		return "close"
	default:
		return "unknown"
	}
}

// CloseFrame is a parsed close frame body (spec.md §3). Present is false
// for a close frame with no body (code/reason absent). Reason borrows the
// buffer it was parsed from.
type CloseFrame struct {
	Present bool
	Code    CloseCode
	Reason  []byte
}

// Message is one reassembled application-level unit: Text, Binary, Ping,
// Pong, or Close. Payload borrows either the read buffer (unfragmented
// messages) or the caller's fragments buffer (reassembled messages); it is
// only valid until the next call that writes into that buffer.
type Message struct {
	Kind    MessageKind
	Payload []byte
	Close   CloseFrame
}

// Text returns the message payload as a string without copying. Valid only
// while the backing buffer is not overwritten by a later operation, and
// only meaningful when Kind == MessageText, in which case the bytes have
// already been validated as UTF-8 by the reassembler.
func (m Message) Text() string {
	if len(m.Payload) == 0 {
		return ""
	}
	return unsafe.String(&m.Payload[0], len(m.Payload))
}

// fragmentState is the "Fragments buffer state" of spec.md §3: present
// (Active) or not, and when present the opcode of the first fragment plus
// the current write offset into the fragments buffer.
type fragmentState struct {
	active bool
	opcode OpCode
	length int
}

// Reassembler consumes decoded frames, enforces RFC 6455 fragmentation and
// close-frame rules, and assembles multi-frame messages into a caller-owned
// scratch buffer (spec.md §4.3). It buffers at most one in-flight
// fragmented message, never allocates, and never grows fragBuf.
type Reassembler struct {
	fragBuf []byte
	frag    fragmentState
}

// NewReassembler returns a Reassembler that reassembles fragmented messages
// into fragBuf. fragBuf's length bounds the largest message this
// connection can receive in fragmented form.
func NewReassembler(fragBuf []byte) *Reassembler {
	return &Reassembler{fragBuf: fragBuf}
}

// Process consumes one decoded frame. ready is true once msg is a complete
// application message; it is false for a non-final data fragment, in which
// case msg is the zero Message and the caller should decode and feed the
// next frame.
func (r *Reassembler) Process(f Frame) (msg Message, ready bool, err error) {
	switch {
	case f.OpCode == OpText || f.OpCode == OpBinary:
		return r.processData(f)
	case f.OpCode == OpContinuation:
		return r.processContinuation(f)
	case f.OpCode == OpPing:
		return Message{Kind: MessagePing, Payload: f.Payload}, true, nil
	case f.OpCode == OpPong:
		return Message{Kind: MessagePong, Payload: f.Payload}, true, nil
	case f.OpCode == OpClose:
		return r.processClose(f)
	default:
		return Message{}, false, ErrInvalidOpcode
	}
}

func (r *Reassembler) processData(f Frame) (Message, bool, error) {
	if r.frag.active {
		return Message{}, false, ErrInvalidFragment
	}

	if f.Fin {
		return r.surfaceData(f.OpCode, f.Payload)
	}

	if len(f.Payload) > len(r.fragBuf) {
		return Message{}, false, ErrFragmentsBufferTooSmall
	}
	n := copy(r.fragBuf, f.Payload)
	r.frag = fragmentState{active: true, opcode: f.OpCode, length: n}
	return Message{}, false, nil
}

func (r *Reassembler) processContinuation(f Frame) (Message, bool, error) {
	if !r.frag.active {
		return Message{}, false, ErrInvalidContinuation
	}

	newLen := r.frag.length + len(f.Payload)
	if newLen > len(r.fragBuf) {
		return Message{}, false, ErrFragmentsBufferTooSmall
	}
	copy(r.fragBuf[r.frag.length:newLen], f.Payload)
	r.frag.length = newLen

	if !f.Fin {
		return Message{}, false, nil
	}

	opcode := r.frag.opcode
	payload := r.fragBuf[:r.frag.length]
	r.frag = fragmentState{}
	return r.surfaceData(opcode, payload)
}

func (r *Reassembler) surfaceData(opcode OpCode, payload []byte) (Message, bool, error) {
	kind := MessageBinary
	if opcode == OpText {
		kind = MessageText
		if !utf8.Valid(payload) {
			return Message{}, false, ErrInvalidUTF8
		}
	}
	return Message{Kind: kind, Payload: payload}, true, nil
}

func (r *Reassembler) processClose(f Frame) (Message, bool, error) {
	cf, err := parseCloseFrame(f.Payload)
	if err != nil {
		return Message{}, false, err
	}
	return Message{Kind: MessageClose, Close: cf}, true, nil
}
