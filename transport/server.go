// Package transport binds the routing core to TCP. Envelopes travel as
// newline-delimited JSON; everything interesting happens behind the
// dispatcher and the services.
package transport

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"

	"chat-relay/contract"
	"chat-relay/dispatch"
	"chat-relay/protocol"
	"chat-relay/services"
)

const maxLineBytes = 64 * 1024

// Conn wraps one client connection. Writes are serialized by a mutex so the
// router, the bus bridge and ack paths can send concurrently.
type Conn struct {
	nc net.Conn
	mu sync.Mutex
}

func (c *Conn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.nc.Write(payload); err != nil {
		return err
	}
	_, err := c.nc.Write([]byte{'\n'})
	return err
}

type Server struct {
	dispatcher *dispatch.Dispatcher
	auth       *services.AuthService
	log        *slog.Logger
}

func NewServer(dispatcher *dispatch.Dispatcher, auth *services.AuthService, log *slog.Logger) *Server {
	return &Server{dispatcher: dispatcher, auth: auth, log: log}
}

// Serve accepts connections until the context ends. Each connection gets
// its own goroutine; a close, clean or not, funnels into the abrupt
// disconnect path, which is a no-op if the user already logged out.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	var wg sync.WaitGroup

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		nc, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			s.log.Warn("accept failed", "error", err)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handle(ctx, nc)
		}()
	}

	wg.Wait()
	return nil
}

func (s *Server) handle(ctx context.Context, nc net.Conn) {
	conn := &Conn{nc: nc}
	defer func() {
		_ = nc.Close()
		s.auth.HandleAbruptDisconnect(ctx, conn)
	}()

	scanner := bufio.NewScanner(nc)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		env, err := protocol.Decode(line)
		if err != nil {
			s.log.Warn("undecodable envelope", "remote", nc.RemoteAddr().String(), "error", err)
			continue
		}
		s.dispatcher.Dispatch(ctx, contract.Sender(conn), env)
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		s.log.Debug("connection read ended", "remote", nc.RemoteAddr().String(), "error", err)
	}
}
