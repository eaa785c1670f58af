package progress

import (
	"bufio"
	"context"
	"encoding/json"
	"log"
	"net"
	"strings"

	"github.com/m-lab/go/rtx"
)

// Handler receives phase lifecycle events as they arrive on the socket.
type Handler interface {
	PhaseStarted(event PhaseEvent)
	PhaseFinished(event PhaseEvent)
}

// MustRun connects to socket and delivers decoded events to handler until ctx
// is canceled. Any error other than the connection closing is fatal.
func MustRun(ctx context.Context, socket string, handler Handler) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c, err := net.Dial("unix", socket)
	rtx.Must(err, "progress: could not connect to %q", socket)
	go func() {
		<-ctx.Done()
		c.Close()
	}()

	s := bufio.NewScanner(c)
	for s.Scan() {
		var event PhaseEvent
		rtx.Must(json.Unmarshal(s.Bytes(), &event), "progress: could not unmarshal event")
		switch event.Event {
		case PhaseStarted:
			handler.PhaseStarted(event)
		case PhaseFinished:
			handler.PhaseFinished(event)
		default:
			log.Println("progress: unknown event kind:", event.Event)
		}
	}

	err = s.Err()
	if err != nil && strings.Contains(err.Error(), "use of closed network connection") {
		err = nil
	}
	rtx.Must(err, "progress: scanning of %s died with non-EOF error", socket)
}
