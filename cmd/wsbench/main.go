// Command wsbench drives the websocket package over a real TCP socket,
// either as a server that echoes every message it receives or as a
// client that sends a burst of messages and reports round-trip timing.
// It exists to exercise the library the way a host process would, with
// the ambient stack (structured logging, CLI flags) the library itself
// deliberately has none of.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/coregx/wsendpoint/internal/netio"
	"github.com/coregx/wsendpoint/internal/wsrand"
	"github.com/coregx/wsendpoint/websocket"
)

const (
	readBufSize  = 64 * 1024
	writeBufSize = 64 * 1024
	fragBufSize  = 256 * 1024
)

func newBuffers() websocket.Buffers {
	return websocket.Buffers{
		Read:    make([]byte, readBufSize),
		Write:   make([]byte, writeBufSize),
		Frag:    make([]byte, fragBufSize),
		Headers: make([]websocket.Header, 0, 32),
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "wsbench",
		Usage: "benchmark/exercise a WebSocket endpoint over raw TCP",
		Commands: []*cli.Command{
			serveCommand(),
			benchCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "wsbench: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(pretty bool) zerolog.Logger {
	if pretty {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "accept connections and echo every message received",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: ":9001", Usage: "listen address"},
			&cli.IntFlag{Name: "max-conns", Value: 1024, Usage: "maximum concurrent connections"},
			&cli.BoolFlag{Name: "pretty-log", Usage: "human-readable console logging"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := newLogger(cmd.Bool("pretty-log"))
			addr := cmd.String("addr")

			ln, err := netio.Listen(addr, int(cmd.Int("max-conns")))
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			defer ln.Close()

			log.Info().Str("addr", addr).Msg("wsbench server listening")

			for {
				raw, err := ln.Accept()
				if err != nil {
					log.Error().Err(err).Msg("accept failed")
					continue
				}
				go serveConn(log, raw)
			}
		},
	}
}

func serveConn(log zerolog.Logger, raw net.Conn) {
	defer raw.Close()

	id := shortuuid.New()
	log = log.With().Str("conn_id", id).Str("remote", raw.RemoteAddr().String()).Logger()

	conn, _, err := websocket.Accept(raw, websocket.AcceptOptions{}, newBuffers())
	if err != nil {
		log.Error().Err(err).Msg("handshake failed")
		return
	}
	log.Info().Msg("connection established")

	var messages, bytesEchoed uint64
	start := time.Now()

	for {
		msg, err := conn.NextMessage()
		if err != nil {
			log.Info().
				Uint64("messages", messages).
				Uint64("bytes", bytesEchoed).
				Dur("elapsed", time.Since(start)).
				Err(err).
				Msg("connection ended")
			return
		}

		switch msg.Kind {
		case websocket.MessageText, websocket.MessageBinary:
			messages++
			bytesEchoed += uint64(len(msg.Payload))
			if err := conn.Send(msg.Kind, msg.Payload); err != nil {
				log.Error().Err(err).Msg("echo failed")
				return
			}
		case websocket.MessageClose:
			log.Info().Uint16("code", uint16(msg.Close.Code)).Msg("peer closed")
			return
		}
	}
}

func benchCommand() *cli.Command {
	return &cli.Command{
		Name:  "bench",
		Usage: "connect to a server and report echo round-trip timing",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: "localhost:9001", Usage: "server address"},
			&cli.IntFlag{Name: "count", Value: 1000, Usage: "number of round trips"},
			&cli.IntFlag{Name: "size", Value: 128, Usage: "payload size in bytes"},
			&cli.BoolFlag{Name: "pretty-log", Usage: "human-readable console logging"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := newLogger(cmd.Bool("pretty-log"))
			addr := cmd.String("addr")
			count := int(cmd.Int("count"))
			size := int(cmd.Int("size"))

			raw, err := netio.Dial(addr, 5*time.Second)
			if err != nil {
				return fmt.Errorf("dial: %w", err)
			}
			defer raw.Close()

			rng := wsrand.Source{}
			conn, _, err := websocket.Connect(raw, rng, websocket.ConnectOptions{}, newBuffers())
			if err != nil {
				return fmt.Errorf("handshake: %w", err)
			}

			payload := make([]byte, size)
			rng.Fill(payload)

			var total time.Duration
			var worst time.Duration
			for i := 0; i < count; i++ {
				t0 := time.Now()
				if err := conn.Send(websocket.MessageBinary, payload); err != nil {
					return fmt.Errorf("send: %w", err)
				}
				msg, err := conn.NextMessage()
				if err != nil {
					return fmt.Errorf("receive: %w", err)
				}
				elapsed := time.Since(t0)
				total += elapsed
				if elapsed > worst {
					worst = elapsed
				}
				if len(msg.Payload) != size {
					log.Warn().Int("want", size).Int("got", len(msg.Payload)).Msg("unexpected echo size")
				}
			}

			_ = conn.Close(websocket.CloseNormalClosure, nil)

			log.Info().
				Int("count", count).
				Int("size", size).
				Dur("avg", total/time.Duration(count)).
				Dur("worst", worst).
				Msg("bench complete")
			return nil
		},
	}
}
