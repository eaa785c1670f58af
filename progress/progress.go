// Package progress serves a JSONL stream of phase-lifecycle events over a
// unix-domain socket, so an external process (a dashboard, a supervising
// script) can watch a netpace run advance through its rate sweep without
// scraping stdout: a mutex-guarded client set, a buffered channel feeding a
// single notifyClients goroutine, one JSONL record per phase start/finish.
package progress

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/m-lab/netpace/metrics"
)

// EventKind distinguishes the two points in a phase's lifecycle that get
// reported.
type EventKind int

const (
	// PhaseStarted is sent when a rate-sweep phase begins sending.
	PhaseStarted = EventKind(iota)
	// PhaseFinished is sent when a phase's results have been collected,
	// whether it ran to completion or stopped early.
	PhaseFinished
)

func (k EventKind) String() string {
	switch k {
	case PhaseStarted:
		return "PhaseStarted"
	case PhaseFinished:
		return "PhaseFinished"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Filename is a command-line flag holding the unix-domain socket path used by
// the client and server, mirroring the single canonical flag name the
// teacher package established for its own event socket.
var Filename = flag.String("netpace.progresssocket", "", "The filename of the unix-domain socket on which phase progress events are served.")

// PhaseEvent is one line of the JSONL stream. StopReason and MsgPerSecTx /
// MsgPerSecRx are only meaningful on PhaseFinished events.
type PhaseEvent struct {
	Event           EventKind
	Timestamp       time.Time
	MsgPerSecTarget int
	MsgPerSecTx     int    `json:",omitempty"`
	MsgPerSecRx     int    `json:",omitempty"`
	StopReason      string `json:",omitempty"`
}

// Server is the interface implemented by the real unix-socket server and by
// NullServer, so callers that don't care about progress reporting can hold a
// Server without a nil check.
type Server interface {
	Listen() error
	Serve(context.Context) error
	PhaseStarted(target int)
	PhaseFinished(target, tx, rx int, stopReason string)
}

type server struct {
	eventC       chan *PhaseEvent
	filename     string
	clients      map[net.Conn]struct{}
	unixListener net.Listener
	mutex        sync.Mutex
	servingWG    sync.WaitGroup
}

// New makes a new Server that serves phase events on the provided unix-domain
// socket path.
func New(filename string) Server {
	return &server{
		filename: filename,
		eventC:   make(chan *PhaseEvent, 100),
		clients:  make(map[net.Conn]struct{}),
	}
}

func (s *server) addClient(c net.Conn) {
	log.Println("progress: new client", c.RemoteAddr())
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.clients[c] = struct{}{}
}

func (s *server) removeClient(c net.Conn) {
	s.servingWG.Add(1)
	defer s.servingWG.Done()
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
}

func (s *server) sendToAllListeners(data string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for c := range s.clients {
		if _, err := fmt.Fprintln(c, data); err != nil {
			log.Println("progress: write to client failed, removing:", err)
			go s.removeClient(c)
			go c.Close()
		}
	}
}

func (s *server) notifyClients(ctx context.Context) {
	s.servingWG.Add(1)
	defer s.servingWG.Done()
	for ctx.Err() == nil {
		event, ok := <-s.eventC
		if !ok {
			return
		}
		b, err := json.Marshal(event)
		if err != nil {
			log.Printf("progress: WARNING: could not marshal event %v: %v\n", event, err)
			continue
		}
		s.sendToAllListeners(string(b))
	}
}

// Listen opens the unix-domain socket. Call Serve afterward to start
// accepting connections.
func (s *server) Listen() error {
	s.servingWG.Add(1)
	os.Remove(s.filename)
	var err error
	s.unixListener, err = net.Listen("unix", s.filename)
	return err
}

// Serve accepts clients until ctx is canceled. Should run in its own
// goroutine after Listen.
func (s *server) Serve(ctx context.Context) error {
	defer s.servingWG.Done()
	derivedCtx, derivedCancel := context.WithCancel(ctx)
	defer derivedCancel()

	go s.notifyClients(derivedCtx)

	s.servingWG.Add(1)
	go func() {
		<-derivedCtx.Done()
		s.unixListener.Close()
		close(s.eventC)
		s.servingWG.Done()
	}()

	var err error
	for derivedCtx.Err() == nil {
		var conn net.Conn
		conn, err = s.unixListener.Accept()
		if err != nil {
			log.Printf("progress: could not accept on socket %q: %v\n", s.filename, err)
			continue
		}
		s.addClient(conn)
	}
	return err
}

// PhaseStarted reports that a rate-sweep phase targeting target msgs/sec has
// begun sending.
func (s *server) PhaseStarted(target int) {
	s.eventC <- &PhaseEvent{
		Event:           PhaseStarted,
		Timestamp:       time.Now(),
		MsgPerSecTarget: target,
	}
}

// PhaseFinished reports a phase's completion, with the achieved send/receive
// rates and why it stopped ("duration" or "stop-threshold").
func (s *server) PhaseFinished(target, tx, rx int, stopReason string) {
	s.eventC <- &PhaseEvent{
		Event:           PhaseFinished,
		Timestamp:       time.Now(),
		MsgPerSecTarget: target,
		MsgPerSecTx:     tx,
		MsgPerSecRx:     rx,
		StopReason:      stopReason,
	}
	metrics.PhasesRun.WithLabelValues(stopReason).Inc()
}

type nullServer struct{}

func (nullServer) Listen() error                       { return nil }
func (nullServer) Serve(context.Context) error         { return nil }
func (nullServer) PhaseStarted(int)                    {}
func (nullServer) PhaseFinished(int, int, int, string) {}

// NullServer returns a Server that does nothing, so callers running without
// --netpace.progresssocket don't need a nil check.
func NullServer() Server {
	return nullServer{}
}
