package websocket

import (
	"encoding/binary"
	"unicode/utf8"
)

// parseCloseFrame decodes a close frame payload per spec.md §4.3: 0 bytes
// is Close(none), 1 byte is invalid, >=2 bytes is a close code followed by
// a UTF-8 reason. Shared by the Reassembler and the auto-responder so both
// apply exactly the same validation.
func parseCloseFrame(payload []byte) (CloseFrame, error) {
	switch {
	case len(payload) == 0:
		return CloseFrame{Present: false}, nil
	case len(payload) == 1:
		return CloseFrame{}, ErrInvalidCloseFrame
	}

	code := CloseCode(binary.BigEndian.Uint16(payload[:2]))
	reason := payload[2:]

	if !code.AllowedToSend() {
		return CloseFrame{}, &ErrCloseCode{Code: code}
	}
	if !utf8.Valid(reason) {
		return CloseFrame{}, ErrInvalidUTF8
	}

	return CloseFrame{Present: true, Code: code, Reason: reason}, nil
}

// autoKind tags the decision an auto-responder made about an incoming
// frame, before it ever reaches the reassembler (spec.md §4.4).
type autoKind uint8

const (
	autoPassThrough autoKind = iota
	autoPong
	autoCloseAck
)

// autoDecision is the pure function of (frame, connection state)
// describing whether the frame must trigger an automatic outgoing
// Pong/Close instead of being surfaced to the caller.
type autoDecision struct {
	kind  autoKind
	pong  []byte     // autoPong: payload to echo back
	close CloseFrame // autoCloseAck: the close frame that was received
}

// decideAuto is a pure function: given the incoming frame and the
// connection's current auto-pong/auto-close/closed flags, decide what (if
// anything) must happen before the frame is handed to the reassembler.
// It performs no I/O itself — conn.go acts on the returned decision.
func decideAuto(f Frame, autoPongEnabled, autoCloseEnabled, closed bool) (autoDecision, error) {
	switch {
	case autoPongEnabled && f.OpCode == OpPing:
		return autoDecision{kind: autoPong, pong: f.Payload}, nil

	case autoCloseEnabled && f.OpCode == OpClose && !closed:
		cf, err := parseCloseFrame(f.Payload)
		if err != nil {
			return autoDecision{}, err
		}
		return autoDecision{kind: autoCloseAck, close: cf}, nil

	default:
		return autoDecision{kind: autoPassThrough}, nil
	}
}
