package websocket

// Fragmenter is a lazy, finite sequence of frames produced from one data
// message and a fragment size (spec.md §4.6). It allocates nothing: each
// call to Next returns a view over the caller's original payload slice.
type Fragmenter struct {
	opcode   OpCode
	payload  []byte
	size     int
	offset   int
	first    bool
	finished bool
	emptyMsg bool
}

// NewFragmenter builds a Fragmenter for a Text or Binary message. size must
// be at least 1. kind must be MessageText or MessageBinary; control
// messages can never be fragmented.
func NewFragmenter(kind MessageKind, payload []byte, size int) (*Fragmenter, error) {
	if size < 1 {
		return nil, ErrInvalidFragmentSize
	}

	var opcode OpCode
	switch kind {
	case MessageText:
		opcode = OpText
	case MessageBinary:
		opcode = OpBinary
	default:
		return nil, ErrCannotBeFragmented
	}

	return &Fragmenter{
		opcode:   opcode,
		payload:  payload,
		size:     size,
		first:    true,
		emptyMsg: len(payload) == 0,
	}, nil
}

// Next returns the next frame in the sequence. ok is false once the
// sequence is exhausted. The first frame carries the message's original
// opcode with Fin=false (unless the whole message fits in one frame, in
// which case Fin=true); every later frame is OpContinuation; exactly the
// last frame has Fin=true. An empty payload yields exactly one frame
// (Fin=true, original opcode, empty payload).
func (fr *Fragmenter) Next() (f Frame, ok bool) {
	if fr.finished {
		return Frame{}, false
	}

	if fr.emptyMsg {
		fr.finished = true
		return Frame{Fin: true, OpCode: fr.opcode, Payload: fr.payload[:0]}, true
	}

	end := fr.offset + fr.size
	last := end >= len(fr.payload)
	if last {
		end = len(fr.payload)
	}

	opcode := OpContinuation
	if fr.first {
		opcode = fr.opcode
	}

	chunk := fr.payload[fr.offset:end]
	fr.offset = end
	fr.first = false
	if last {
		fr.finished = true
	}

	return Frame{Fin: last, OpCode: opcode, Payload: chunk}, true
}
