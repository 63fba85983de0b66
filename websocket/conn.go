package websocket

// role picks the masking discipline for one endpoint: a client masks
// everything it sends and rejects masked frames from its peer; a server
// does the opposite (spec.md §2 "two booleans instead of a type").
type role struct {
	mask   bool // outgoing frames are masked
	unmask bool // incoming frames must be masked
}

var (
	clientRole = role{mask: true, unmask: false}
	serverRole = role{mask: false, unmask: true}
)

// Buffers bundles every caller-owned, fixed-size slice a Conn needs.
// None of them are ever grown or reallocated; the lengths of Read, Write
// and Frag are the connection's hard ceilings (spec.md §1 "every buffer is
// caller-supplied").
type Buffers struct {
	// Read is the raw-byte staging buffer frames are decoded out of. Its
	// length bounds the largest single frame header plus payload this
	// connection can receive (the read-side analogue of Write).
	Read []byte
	// Write is the staging buffer frames are encoded into before being
	// flushed. Its length bounds the largest single frame this
	// connection can send.
	Write []byte
	// Frag is scratch storage for reassembling a fragmented message. Its
	// length bounds the largest fragmented message this connection can
	// receive; unfragmented messages never touch it.
	Frag []byte
	// Headers is scratch storage used only during the handshake to hold
	// the peer's parsed header list. Pass it with len 0 and whatever
	// capacity bounds the header count you're willing to accept.
	Headers []Header
}

// Conn is one WebSocket endpoint: a frame encoder/decoder pair, a message
// reassembler, and the auto-responder policy, all driven by a single IO
// collaborator. Nothing here spawns a goroutine or takes a lock; a Conn is
// meant to be driven from one task at a time (spec.md §5), with Split
// the one escape hatch for overlapping a concurrent read and write.
type Conn struct {
	io  IO
	rng Rand // non-nil only for a client Conn; supplies every outgoing mask key

	reader frameReader
	writer frameWriter

	reassembler *Reassembler
	role        role

	autoPong   bool
	autoClose  bool
	closed     bool // a Close frame has been sent or received
	peerClosed bool // a Close frame has been received
}

// newConn assembles a Conn from already-negotiated role/buffers/pending
// state, shared by Connect and Accept. rng is nil for a server Conn, which
// never masks outgoing frames.
func newConn(io IO, rng Rand, r role, bufs Buffers, pending int) *Conn {
	reader := frameReader{src: io, dec: NewDecoder(r.unmask), buf: bufs.Read, filled: pending}
	writer := frameWriter{dst: io, enc: NewEncoder(r.mask), buf: bufs.Write}

	return &Conn{
		io:          io,
		rng:         rng,
		reader:      reader,
		writer:      writer,
		reassembler: NewReassembler(bufs.Frag),
		role:        r,
		autoPong:    true,
		autoClose:   true,
	}
}

// Connect drives the client handshake on io, then returns an open Conn
// positioned to read and write frames. rng supplies the Sec-WebSocket-Key
// and, later, every outgoing frame's masking key — including the client's
// own auto-pong and auto-close replies, so the Conn keeps a reference to
// it. The handshake's Inspect callback result (if any) is returned as
// userValue.
func Connect(io IO, rng Rand, opts ConnectOptions, bufs Buffers) (conn *Conn, userValue any, err error) {
	userValue, pending, err := clientHandshake(io, rng, opts, bufs.Read, bufs.Write, bufs.Headers)
	if err != nil {
		return nil, nil, err
	}
	return newConn(io, rng, clientRole, bufs, pending), userValue, nil
}

// Accept drives the server handshake on io, then returns an open Conn
// positioned to read and write frames.
func Accept(io IO, opts AcceptOptions, bufs Buffers) (conn *Conn, userValue any, err error) {
	userValue, pending, err := serverHandshake(io, opts, bufs.Read, bufs.Write, bufs.Headers)
	if err != nil {
		return nil, nil, err
	}
	return newConn(io, nil, serverRole, bufs, pending), userValue, nil
}

// WithAutoPong enables or disables automatically answering an incoming
// Ping with a Pong before NextMessage ever surfaces it (spec.md §4.4).
// Enabled by default.
func (c *Conn) WithAutoPong(enabled bool) *Conn {
	c.autoPong = enabled
	return c
}

// WithAutoClose enables or disables automatically echoing an incoming
// Close frame back to the peer before NextMessage surfaces it as a
// MessageClose (spec.md §4.4). Enabled by default. Either way, once a
// Close has been seen NextMessage returns ErrConnectionClosed on every
// later call.
func (c *Conn) WithAutoClose(enabled bool) *Conn {
	c.autoClose = enabled
	return c
}

// FramableBytes reports how many undecoded bytes are currently sitting in
// the read buffer — bytes already received that NextMessage has not yet
// turned into a frame. Exposed so a host using an edge-triggered poller
// knows there's work to do even without a fresh readiness notification.
func (c *Conn) FramableBytes() int {
	return c.reader.pendingBytes()
}

// NextMessage blocks (suspending on the underlying IO) until the next
// application message is available, applying the auto-pong/auto-close
// policy to Ping/Close frames first. It returns ErrConnectionClosed once
// a Close frame from the peer has been received. After a local Close it
// keeps reading, so the peer's Close reply can still be drained.
func (c *Conn) NextMessage() (Message, error) {
	for {
		if c.peerClosed {
			return Message{}, ErrConnectionClosed
		}

		f, err := c.reader.next()
		if err != nil {
			return Message{}, err
		}

		decision, err := decideAuto(f, c.autoPong, c.autoClose, c.closed)
		if err != nil {
			return Message{}, err
		}

		switch decision.kind {
		case autoPong:
			if err := c.sendFrame(true, OpPong, decision.pong); err != nil {
				return Message{}, err
			}
			continue

		case autoCloseAck:
			body := f.Payload
			if !decision.close.Present {
				var buf [2]byte
				encodeCloseCode(buf[:], CloseNormalClosure)
				body = buf[:]
			}
			if err := c.sendFrame(true, OpClose, body); err != nil {
				return Message{}, err
			}
			c.closed = true
			c.peerClosed = true
			return Message{Kind: MessageClose, Close: decision.close}, nil
		}

		msg, ready, err := c.reassembler.Process(f)
		if err != nil {
			return Message{}, err
		}
		if !ready {
			continue
		}
		if msg.Kind == MessageClose {
			c.closed = true
			c.peerClosed = true
		}
		return msg, nil
	}
}

// sendFrame writes a single, unfragmented frame carrying payload verbatim,
// masking it with a fresh key from c.rng when this is a client Conn.
func (c *Conn) sendFrame(fin bool, opcode OpCode, payload []byte) error {
	var key maskKey
	if c.role.mask {
		c.rng.Fill(key[:])
	}
	return c.writer.writeFrame(fin, opcode, len(payload), key, func(dst []byte) int {
		return copy(dst, payload)
	})
}

// Send writes one complete, unfragmented message.
func (c *Conn) Send(kind MessageKind, payload []byte) error {
	if c.closed {
		return ErrConnectionClosed
	}
	opcode, err := opcodeFor(kind)
	if err != nil {
		return err
	}
	return c.sendFrame(true, opcode, payload)
}

// SendFragmented writes payload as a sequence of frames of at most size
// bytes each, per spec.md §4.6. kind must be MessageText or MessageBinary.
func (c *Conn) SendFragmented(kind MessageKind, payload []byte, size int) error {
	if c.closed {
		return ErrConnectionClosed
	}
	fr, err := NewFragmenter(kind, payload, size)
	if err != nil {
		return err
	}

	for {
		f, ok := fr.Next()
		if !ok {
			return nil
		}
		if err := c.sendFrame(f.Fin, f.OpCode, f.Payload); err != nil {
			return err
		}
	}
}

// Close writes a close frame with the given code and reason, then marks
// the connection closed. It does not wait for the peer's close frame;
// call NextMessage afterward to drain the close handshake if required.
func (c *Conn) Close(code CloseCode, reason []byte) error {
	if c.closed {
		return ErrConnectionClosed
	}
	c.closed = true

	var body [maxControlPayload]byte
	n := 0
	n += encodeCloseCode(body[n:], code)
	n += copy(body[n:], reason)

	return c.sendFrame(true, OpClose, body[:n])
}

func encodeCloseCode(dst []byte, code CloseCode) int {
	dst[0] = byte(code >> 8)
	dst[1] = byte(code)
	return 2
}

func opcodeFor(kind MessageKind) (OpCode, error) {
	switch kind {
	case MessageText:
		return OpText, nil
	case MessageBinary:
		return OpBinary, nil
	case MessagePing:
		return OpPing, nil
	case MessagePong:
		return OpPong, nil
	default:
		return 0, ErrInvalidOpcode
	}
}

// ReadHalf is the receive-only view of a Conn produced by Split.
type ReadHalf struct {
	c *Conn
}

// NextMessage reads the next application message, applying the same
// auto-pong/auto-close policy as Conn.NextMessage. Auto-replies are
// written through the Conn's shared writer, so a concurrent WriteHalf
// user must expect interleaving at the frame level (spec.md §5 "Split").
func (h *ReadHalf) NextMessage() (Message, error) { return h.c.NextMessage() }

// WriteHalf is the send-only view of a Conn produced by Split.
type WriteHalf struct {
	c *Conn
}

func (h *WriteHalf) Send(kind MessageKind, payload []byte) error {
	return h.c.Send(kind, payload)
}

func (h *WriteHalf) SendFragmented(kind MessageKind, payload []byte, size int) error {
	return h.c.SendFragmented(kind, payload, size)
}

func (h *WriteHalf) Close(code CloseCode, reason []byte) error {
	return h.c.Close(code, reason)
}

// Split divides a Conn into an independent read half and write half,
// letting a host overlap one outstanding read with one outstanding write
// on the same underlying IO (spec.md §4.7 "Split"). The frame codec and
// the auto-responder are shared, since both directions still speak the
// same connection's masking role and close state; callers coordinate
// their own access (e.g. one task per half) since Conn takes no locks.
func (c *Conn) Split() (*ReadHalf, *WriteHalf) {
	return &ReadHalf{c: c}, &WriteHalf{c: c}
}
