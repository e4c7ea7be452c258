package source

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"voiceflow/log"
)

const (
	// The relay does not report per-turn confidence, so events carry a
	// fixed placeholder.
	remoteConfidence = 0.85

	defaultPingInterval = 3 * time.Second
)

// remoteMessage is the relay's wire format: one JSON object per turn
// update, final when the turn ended.
type remoteMessage struct {
	Transcript string `json:"transcript"`
	EndOfTurn  bool   `json:"end_of_turn"`
}

// Remote streams transcripts from the captioning relay over a
// persistent WebSocket. A literal "ping" text frame every three seconds
// keeps the relay's receive loop alive. There is no automatic
// reconnect: a drop surfaces one ErrTransport notification and the
// source stays quiet until the user starts a new session.
type Remote struct {
	url          string
	notify       NotifyFunc
	pingInterval time.Duration

	events chan Event

	mu      sync.Mutex
	active  bool
	conn    *websocket.Conn
	cancel  context.CancelFunc
	stopped chan struct{}
	wg      sync.WaitGroup
	errOnce sync.Once

	statsMu sync.Mutex
	stats   remoteStats
}

type remoteStats struct {
	connectedAt  time.Time
	connectMs    float64
	recvMessages int
	recvFinal    int
	recvInterim  int
	pings        int
}

func NewRemote(url string, notify NotifyFunc) *Remote {
	return &Remote{
		url:          url,
		notify:       notify,
		pingInterval: defaultPingInterval,
		events:       make(chan Event, 32),
		stopped:      make(chan struct{}),
	}
}

func (r *Remote) Name() string { return SourceRemote }

func (r *Remote) Events() <-chan Event { return r.events }

// Feed is a no-op: the relay captures audio on its own side, the socket
// only carries transcripts inbound and keep-alives outbound.
func (r *Remote) Feed([]byte) {}

func (r *Remote) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	connectStart := time.Now()
	conn, _, err := websocket.Dial(runCtx, r.url, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	log.Infof("remote source connected in %dms", time.Since(connectStart).Milliseconds())

	r.active = true
	r.conn = conn
	r.cancel = cancel
	r.statsMu.Lock()
	r.stats.connectedAt = time.Now()
	r.stats.connectMs = float64(time.Since(connectStart).Milliseconds())
	r.statsMu.Unlock()

	r.wg.Add(2)
	go r.readLoop(runCtx, conn)
	go r.pingLoop(runCtx, conn)
	return nil
}

func (r *Remote) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer r.wg.Done()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			select {
			case <-r.stopped:
			default:
				// Connection dropped mid-session: exactly one
				// notification per drop, no reconnect.
				r.errOnce.Do(func() {
					log.Errorf("remote source read: %v", err)
					r.notify.notify(ErrTransport)
				})
			}
			return
		}

		var msg remoteMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warnf("remote source: unparsable message: %v", err)
			continue
		}

		r.statsMu.Lock()
		r.stats.recvMessages++
		if msg.EndOfTurn {
			r.stats.recvFinal++
		} else {
			r.stats.recvInterim++
		}
		r.statsMu.Unlock()

		ev := Event{
			Text:       msg.Transcript,
			Final:      msg.EndOfTurn,
			Confidence: remoteConfidence,
			Source:     SourceRemote,
		}
		select {
		case r.events <- ev:
		case <-r.stopped:
			return
		}
	}
}

func (r *Remote) pingLoop(ctx context.Context, conn *websocket.Conn) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopped:
			return
		case <-ticker.C:
			if err := conn.Write(ctx, websocket.MessageText, []byte("ping")); err != nil {
				return
			}
			r.statsMu.Lock()
			r.stats.pings++
			r.statsMu.Unlock()
		}
	}
}

func (r *Remote) Stop() error {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return nil
	}
	r.active = false
	conn := r.conn
	cancel := r.cancel
	r.mu.Unlock()

	close(r.stopped)
	conn.Close(websocket.StatusNormalClosure, "")
	cancel()
	r.wg.Wait()
	close(r.events)

	r.statsMu.Lock()
	st := r.stats
	r.statsMu.Unlock()
	if !st.connectedAt.IsZero() {
		log.StreamMetrics(log.StreamMetricsData{
			ConnectMs:    st.connectMs,
			TotalMs:      float64(time.Since(st.connectedAt).Milliseconds()),
			RecvMessages: st.recvMessages,
			RecvFinal:    st.recvFinal,
			RecvInterim:  st.recvInterim,
			Pings:        st.pings,
		})
	}
	return nil
}
