// Package ipcserver implements the daemon's connection plane (spec §4.2):
// a Unix domain socket listener, per-connection reader/writer goroutines
// speaking JSON Lines, and the stale-socket probe-then-rebind dance. The
// per-connection goroutine shape mirrors the teacher's WebSocket handler
// (internal/ws/server.go handleWS + internal/ws/broadcast.go client
// writePump) translated from an HTTP upgrade onto a raw Unix socket.
package ipcserver

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pablolion/acd/internal/actor"
	"github.com/pablolion/acd/internal/broadcast"
	"github.com/pablolion/acd/internal/proto"
)

// ErrAnotherDaemonRunning is returned by Listen when a probe connect to an
// existing socket file succeeds, meaning a responsive daemon already owns
// it (spec §4.2, §6 exit code 1 case).
var ErrAnotherDaemonRunning = errors.New("ipcserver: another daemon is already listening")

// Listen binds a Unix socket at path, first probing for and clearing a
// stale socket file left by a crashed daemon.
func Listen(path string) (net.Listener, error) {
	if _, err := os.Stat(path); err == nil {
		if probe, err := net.DialTimeout("unix", path, 200*time.Millisecond); err == nil {
			probe.Close()
			return nil, ErrAnotherDaemonRunning
		}
		os.Remove(path)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		ln.Close()
		return nil, err
	}
	return ln, nil
}

// Server accepts connections and dispatches parsed commands to the actor.
type Server struct {
	ln     net.Listener
	act    *actor.Actor
	log    *logrus.Logger
	wg     sync.WaitGroup
	closed chan struct{}
	once   sync.Once
}

// New wraps an already-bound listener.
func New(ln net.Listener, act *actor.Actor, log *logrus.Logger) *Server {
	return &Server{ln: ln, act: act, log: log, closed: make(chan struct{})}
}

// Serve accepts connections until the listener is closed via Shutdown.
func (s *Server) Serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.closed:
				return
			default:
				s.log.WithError(err).Warn("accept error")
				return
			}
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// Shutdown stops accepting new connections. Callers should also broadcast
// a Shutdown delta via the actor and wait (with a deadline) for in-flight
// connections to drain before calling Wait.
func (s *Server) Shutdown() {
	s.once.Do(func() {
		close(s.closed)
		s.ln.Close()
	})
}

// Wait blocks until all connection handler goroutines have returned.
func (s *Server) Wait() { s.wg.Wait() }

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	connID := broadcast.NewSubscriber().ID // reuse uuid generation for a connection identity
	var sub *broadcast.Subscriber

	out := make(chan []byte, 16)
	writerDone := make(chan struct{})
	go s.writePump(conn, out, writerDone)
	defer func() {
		close(out)
		<-writerDone
		if sub != nil {
			reply := make(chan actor.Result, 1)
			s.act.Inbound() <- actor.Message{Kind: actor.KindUnsubscribe, Subscriber: sub, Reply: reply}
			<-reply
		}
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), proto.MaxLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		env, err := proto.Decode(line)
		if err != nil {
			s.sendErr(out, proto.ErrKindProtocol, "invalid JSON: "+err.Error())
			continue
		}
		if env.Version != proto.Version {
			s.sendErr(out, proto.ErrKindProtocol, "unsupported protocol version")
			continue
		}

		switch env.Type {
		case proto.TypeSet:
			s.dispatchSet(connID, env, out)
		case proto.TypeRemove:
			s.dispatchRemove(connID, env, out)
		case proto.TypeReopen:
			s.dispatchReopen(connID, env, out)
		case proto.TypeList:
			s.dispatchList(out)
		case proto.TypeSubscribe:
			sub = s.dispatchSubscribe(connID, out)
			go s.pumpSubscriberFrames(sub, out)
		case proto.TypePing:
			s.dispatchSimple(actor.Message{Kind: actor.KindPing}, out)
		case proto.TypeStatus:
			s.dispatchSimple(actor.Message{Kind: actor.KindStatus}, out)
		case proto.TypeReload:
			s.dispatchSimple(actor.Message{Kind: actor.KindReload}, out)
		case proto.TypeStop:
			s.dispatchSimple(actor.Message{Kind: actor.KindStop}, out)
		default:
			s.sendErr(out, proto.ErrKindProtocol, "unknown message type: "+string(env.Type))
		}
	}
}

func (s *Server) writePump(conn net.Conn, out <-chan []byte, done chan<- struct{}) {
	defer close(done)
	for frame := range out {
		frame = append(frame, '\n')
		if _, err := conn.Write(frame); err != nil {
			return
		}
	}
}

func (s *Server) sendErr(out chan<- []byte, kind, message string) {
	b, _ := json.Marshal(proto.ErrReply{Version: proto.Version, Type: proto.TypeErr, Kind: kind, Message: message})
	select {
	case out <- b:
	default:
	}
}

func (s *Server) dispatchSimple(msg actor.Message, out chan<- []byte) {
	reply := make(chan actor.Result, 1)
	msg.Reply = reply
	s.act.Inbound() <- msg
	res := <-reply
	s.sendResult(out, res)
}

func (s *Server) dispatchSet(connID string, env proto.Envelope, out chan<- []byte) {
	var cmd proto.SetCmd
	if err := json.Unmarshal(env.Raw, &cmd); err != nil {
		s.sendErr(out, proto.ErrKindProtocol, "malformed Set: "+err.Error())
		return
	}
	if cmd.SessionID == "" {
		s.sendErr(out, proto.ErrKindInvalidField, "session_id is required")
		return
	}
	s.dispatchSimple(actor.Message{Kind: actor.KindSet, ConnID: connID, SetCmd: cmd}, out)
}

func (s *Server) dispatchRemove(connID string, env proto.Envelope, out chan<- []byte) {
	var cmd proto.RemoveCmd
	if err := json.Unmarshal(env.Raw, &cmd); err != nil {
		s.sendErr(out, proto.ErrKindProtocol, "malformed Remove: "+err.Error())
		return
	}
	s.dispatchSimple(actor.Message{Kind: actor.KindRemove, ConnID: connID, RemoveCmd: cmd}, out)
}

func (s *Server) dispatchReopen(connID string, env proto.Envelope, out chan<- []byte) {
	var cmd proto.ReopenCmd
	if err := json.Unmarshal(env.Raw, &cmd); err != nil {
		s.sendErr(out, proto.ErrKindProtocol, "malformed Reopen: "+err.Error())
		return
	}
	s.dispatchSimple(actor.Message{Kind: actor.KindReopen, ConnID: connID, ReopenCmd: cmd}, out)
}

func (s *Server) dispatchList(out chan<- []byte) {
	s.dispatchSimple(actor.Message{Kind: actor.KindList}, out)
}

// dispatchSubscribe registers the subscriber. Unlike the other commands its
// reply is the Snapshot frame the actor enqueues directly onto
// sub.Outbound (spec §4.5), not a separate Ok — pumpSubscriberFrames
// relays that frame (and all subsequent deltas) once the actor confirms
// registration.
func (s *Server) dispatchSubscribe(connID string, out chan<- []byte) *broadcast.Subscriber {
	sub := broadcast.NewSubscriber()
	reply := make(chan actor.Result, 1)
	s.act.Inbound() <- actor.Message{Kind: actor.KindSubscribe, ConnID: connID, Subscriber: sub, Reply: reply}
	res := <-reply
	if res.Err != nil {
		s.sendErr(out, proto.ErrKindProtocol, res.Err.Error())
	}
	return sub
}

// pumpSubscriberFrames relays frames the actor enqueued directly onto
// sub.Outbound (the Snapshot sent at Subscribe time, and every subsequent
// delta) to this connection's writer. It exits when the subscriber is
// removed from the registry and its channel closed.
func (s *Server) pumpSubscriberFrames(sub *broadcast.Subscriber, out chan<- []byte) {
	for frame := range sub.Outbound {
		select {
		case out <- frame:
		default:
		}
	}
}

func (s *Server) sendResult(out chan<- []byte, res actor.Result) {
	if res.Err != nil {
		s.sendErr(out, proto.ErrKindProtocol, res.Err.Error())
		return
	}
	b, err := json.Marshal(res.Envelope)
	if err != nil {
		s.sendErr(out, proto.ErrKindProtocol, "internal marshal error")
		return
	}
	select {
	case out <- b:
	default:
	}
}
