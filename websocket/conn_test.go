package websocket

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"
)

func newTestBuffers() Buffers {
	return Buffers{
		Read:    make([]byte, 4096),
		Write:   make([]byte, 4096),
		Frag:    make([]byte, 4096),
		Headers: make([]Header, 0, 32),
	}
}

// newLoopbackPair returns both ends of a loopback TCP connection. Unlike
// net.Pipe, the kernel buffers written bytes, so a Send returns without
// the peer reading at the same time.
func newLoopbackPair(t *testing.T) (client, server net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, _ := ln.Accept()
		accepted <- c
	}()
	client, err = net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	server = <-accepted
	if server == nil {
		client.Close()
		t.Fatal("accept failed")
	}
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, server
}

// dialConnPair establishes a connected client/server Conn pair over a
// loopback TCP connection, driving both handshakes concurrently.
func dialConnPair(t *testing.T) (client, server *Conn) {
	t.Helper()
	clientIO, serverIO := newLoopbackPair(t)

	type connResult struct {
		conn *Conn
		err  error
	}
	clientCh := make(chan connResult, 1)
	serverCh := make(chan connResult, 1)

	go func() {
		c, _, err := Connect(clientIO, fixedRand{}, ConnectOptions{}, newTestBuffers())
		clientCh <- connResult{c, err}
	}()
	go func() {
		s, _, err := Accept(serverIO, AcceptOptions{}, newTestBuffers())
		serverCh <- connResult{s, err}
	}()

	timeout := time.After(2 * time.Second)
	var cr, sr connResult
	for i := 0; i < 2; i++ {
		select {
		case cr = <-clientCh:
		case sr = <-serverCh:
		case <-timeout:
			t.Fatal("connection setup timed out")
		}
	}
	if cr.err != nil {
		t.Fatalf("Connect failed: %v", cr.err)
	}
	if sr.err != nil {
		t.Fatalf("Accept failed: %v", sr.err)
	}
	return cr.conn, sr.conn
}

func recvWithTimeout(t *testing.T, conn *Conn) (Message, error) {
	t.Helper()
	type result struct {
		msg Message
		err error
	}
	ch := make(chan result, 1)
	go func() {
		msg, err := conn.NextMessage()
		ch <- result{msg, err}
	}()
	select {
	case r := <-ch:
		return r.msg, r.err
	case <-time.After(2 * time.Second):
		t.Fatal("NextMessage timed out")
		return Message{}, nil
	}
}

func TestConn_SendAndReceiveText(t *testing.T) {
	client, server := dialConnPair(t)

	if err := client.Send(MessageText, []byte("hello server")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	msg, err := recvWithTimeout(t, server)
	if err != nil {
		t.Fatalf("server NextMessage failed: %v", err)
	}
	if msg.Kind != MessageText || msg.Text() != "hello server" {
		t.Errorf("got %+v", msg)
	}
}

func TestConn_AutoPongOnPing(t *testing.T) {
	client, server := dialConnPair(t)

	if err := client.Send(MessagePing, []byte("ping-me")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if err := client.Send(MessageText, []byte("after ping")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	// The server's NextMessage auto-replies with a Pong and does not
	// surface the ping: the first message it returns is the text frame
	// that followed it.
	msg, err := recvWithTimeout(t, server)
	if err != nil {
		t.Fatalf("server NextMessage failed: %v", err)
	}
	if msg.Kind != MessageText || msg.Text() != "after ping" {
		t.Errorf("got %+v", msg)
	}

	pong, err := recvWithTimeout(t, client)
	if err != nil {
		t.Fatalf("client NextMessage failed: %v", err)
	}
	if pong.Kind != MessagePong || !bytes.Equal(pong.Payload, []byte("ping-me")) {
		t.Errorf("got %+v, want auto-pong echo", pong)
	}
}

func TestConn_PingPassThroughWhenAutoPongDisabled(t *testing.T) {
	client, server := dialConnPair(t)
	server.WithAutoPong(false)

	if err := client.Send(MessagePing, []byte("x")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	msg, err := recvWithTimeout(t, server)
	if err != nil {
		t.Fatalf("server NextMessage failed: %v", err)
	}
	if msg.Kind != MessagePing {
		t.Errorf("got %+v", msg)
	}
}

func TestConn_CloseHandshake(t *testing.T) {
	client, server := dialConnPair(t)

	if err := client.Close(CloseNormalClosure, []byte("bye")); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	msg, err := recvWithTimeout(t, server)
	if err != nil {
		t.Fatalf("server NextMessage failed: %v", err)
	}
	if msg.Kind != MessageClose || !msg.Close.Present || msg.Close.Code != CloseNormalClosure {
		t.Fatalf("got %+v", msg)
	}

	// Server's own NextMessage call auto-acked the close; a further call
	// on either side now reports the connection closed.
	if _, err := server.NextMessage(); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("server post-close NextMessage err = %v, want ErrConnectionClosed", err)
	}
}

func TestConn_SendAfterCloseFails(t *testing.T) {
	client, _ := dialConnPair(t)

	if err := client.Close(CloseNormalClosure, nil); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := client.Send(MessageText, []byte("too late")); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Send after Close err = %v, want ErrConnectionClosed", err)
	}
	if err := client.SendFragmented(MessageBinary, []byte("too late"), 2); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("SendFragmented after Close err = %v, want ErrConnectionClosed", err)
	}
}

func TestConn_AutoCloseAckSynthesizesNormalClosureForEmptyBody(t *testing.T) {
	client, server := dialConnPair(t)

	// An incoming close frame with no body at all (Close(none)) must still
	// be acked with a well-formed Close(1000, "") rather than an empty
	// frame. Conn.Close always encodes a code, so send the bodyless frame
	// directly through the package-internal sendFrame helper.
	if err := client.sendFrame(true, OpClose, nil); err != nil {
		t.Fatalf("sendFrame failed: %v", err)
	}
	client.closed = true

	msg, err := recvWithTimeout(t, server)
	if err != nil {
		t.Fatalf("server NextMessage failed: %v", err)
	}
	if msg.Kind != MessageClose || msg.Close.Present {
		t.Fatalf("got %+v, want a bodyless incoming close", msg)
	}

	ack, err := recvWithTimeout(t, client)
	if err != nil {
		t.Fatalf("client NextMessage failed: %v", err)
	}
	if ack.Kind != MessageClose || !ack.Close.Present || ack.Close.Code != CloseNormalClosure || len(ack.Close.Reason) != 0 {
		t.Errorf("got %+v, want Close(1000, \"\") ack", ack)
	}
}

func TestConn_SendFragmented(t *testing.T) {
	client, server := dialConnPair(t)

	payload := []byte("abcdefghijklmnopqrstuvwxyz")
	if err := client.SendFragmented(MessageBinary, payload, 4); err != nil {
		t.Fatalf("SendFragmented failed: %v", err)
	}

	msg, err := recvWithTimeout(t, server)
	if err != nil {
		t.Fatalf("server NextMessage failed: %v", err)
	}
	if msg.Kind != MessageBinary || !bytes.Equal(msg.Payload, payload) {
		t.Errorf("got %+v", msg)
	}
}

func TestConn_SplitConcurrentReadWrite(t *testing.T) {
	client, server := dialConnPair(t)
	reader, writer := server.Split()

	writeDone := make(chan error, 1)
	go func() {
		writeDone <- writer.Send(MessageText, []byte("from server"))
	}()

	readDone := make(chan struct {
		msg Message
		err error
	}, 1)
	go func() {
		msg, err := reader.NextMessage()
		readDone <- struct {
			msg Message
			err error
		}{msg, err}
	}()

	if err := client.Send(MessageText, []byte("from client")); err != nil {
		t.Fatalf("client Send failed: %v", err)
	}

	select {
	case err := <-writeDone:
		if err != nil {
			t.Fatalf("writer.Send failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("writer.Send timed out")
	}

	select {
	case r := <-readDone:
		if r.err != nil {
			t.Fatalf("reader.NextMessage failed: %v", r.err)
		}
		if r.msg.Kind != MessageText || r.msg.Text() != "from client" {
			t.Errorf("got %+v", r.msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reader.NextMessage timed out")
	}

	msg, err := recvWithTimeout(t, client)
	if err != nil {
		t.Fatalf("client NextMessage failed: %v", err)
	}
	if msg.Kind != MessageText || msg.Text() != "from server" {
		t.Errorf("got %+v", msg)
	}
}
