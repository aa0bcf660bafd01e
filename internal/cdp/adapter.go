package cdp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/target"
	"github.com/dgnsrekt/tab_relay/internal/types"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// ReconnectDelay is the fixed wait between connection attempts. There is no
// backoff growth; the adapter retries at this interval for process lifetime.
const ReconnectDelay = 2 * time.Second

// ConnState is the adapter's connection state machine. Any failure returns
// to Discovering after ReconnectDelay.
type ConnState int

const (
	StateDiscovering ConnState = iota
	StateConnecting
	StateConnected
	StateBackoff
)

func (s ConnState) String() string {
	switch s {
	case StateDiscovering:
		return "discovering"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateBackoff:
		return "backoff"
	}
	return "unknown"
}

// EventSink receives decoded target lifecycle events from an adapter, in
// the order the adapter read them.
type EventSink interface {
	TargetCreated(info *target.Info)
	TargetInfoChanged(info *target.Info)
	TargetDestroyed(id target.ID)
}

// Adapter keeps one profile continuously connected to its browser's debug
// event stream, surviving browser restarts. Each profile's adapter runs as
// an isolated goroutine; a stall in one never blocks the other.
type Adapter struct {
	profile  types.Profile
	endpoint *Endpoint
	sink     EventSink

	mu    sync.Mutex
	state ConnState
}

// NewAdapter creates an adapter for the profile's endpoint, delivering
// decoded events to sink.
func NewAdapter(profile types.Profile, endpoint *Endpoint, sink EventSink) *Adapter {
	return &Adapter{profile: profile, endpoint: endpoint, sink: sink}
}

// Profile returns the profile this adapter serves.
func (a *Adapter) Profile() types.Profile { return a.profile }

// State returns the current connection state name.
func (a *Adapter) State() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.String()
}

func (a *Adapter) setState(s ConnState) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// Run connects and re-connects until ctx is canceled. An unreachable
// endpoint means the browser is not running and is retried quietly.
func (a *Adapter) Run(ctx context.Context) {
	for {
		a.setState(StateDiscovering)
		wsURL, err := a.endpoint.BrowserWSURL(ctx)
		if err != nil {
			slog.Debug("browser not available yet", "profile", a.profile, "error", err)
			if !a.backoff(ctx) {
				return
			}
			continue
		}

		a.setState(StateConnecting)
		slog.Info("connecting to browser event stream", "profile", a.profile, "ws_url", wsURL)
		conn, _, _, err := ws.Dial(ctx, wsURL)
		if err != nil {
			slog.Error("browser event stream dial failed", "profile", a.profile, "error", err)
			if !a.backoff(ctx) {
				return
			}
			continue
		}

		if err := a.subscribe(conn); err != nil {
			slog.Error("target discovery subscribe failed", "profile", a.profile, "error", err)
			conn.Close()
			if !a.backoff(ctx) {
				return
			}
			continue
		}

		a.setState(StateConnected)
		slog.Info("browser event stream connected", "profile", a.profile)
		a.readLoop(conn)
		conn.Close()

		slog.Info("browser event stream closed, waiting for reconnection", "profile", a.profile)
		if !a.backoff(ctx) {
			return
		}
	}
}

// subscribe enables target discovery so the browser pushes lifecycle events.
func (a *Adapter) subscribe(conn net.Conn) error {
	frame := struct {
		ID     int64  `json:"id"`
		Method string `json:"method"`
		Params struct {
			Discover bool `json:"discover"`
		} `json:"params"`
	}{ID: 1, Method: "Target.setDiscoverTargets"}
	frame.Params.Discover = true

	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return wsutil.WriteClientText(conn, data)
}

// readLoop yields raw frames until the connection closes or errors.
func (a *Adapter) readLoop(conn net.Conn) {
	for {
		data, err := wsutil.ReadServerText(conn)
		if err != nil {
			slog.Debug("event stream read loop exit", "profile", a.profile, "error", err)
			return
		}
		a.handleFrame(data)
	}
}

// handleFrame decodes one event-stream frame and routes target lifecycle
// events to the sink. Command responses and all other event methods are
// ignored.
func (a *Adapter) handleFrame(data []byte) {
	var msg struct {
		ID     int64              `json:"id"`
		Method cdproto.MethodType `json:"method"`
		Params json.RawMessage    `json:"params"`
	}
	if json.Unmarshal(data, &msg) != nil {
		return
	}
	if msg.Method == "" {
		return
	}

	switch msg.Method {
	case cdproto.EventTargetTargetCreated:
		var ev target.EventTargetCreated
		if err := json.Unmarshal(msg.Params, &ev); err != nil || ev.TargetInfo == nil {
			return
		}
		a.sink.TargetCreated(ev.TargetInfo)
	case cdproto.EventTargetTargetInfoChanged:
		var ev target.EventTargetInfoChanged
		if err := json.Unmarshal(msg.Params, &ev); err != nil || ev.TargetInfo == nil {
			return
		}
		a.sink.TargetInfoChanged(ev.TargetInfo)
	case cdproto.EventTargetTargetDestroyed:
		var ev target.EventTargetDestroyed
		if err := json.Unmarshal(msg.Params, &ev); err != nil {
			return
		}
		a.sink.TargetDestroyed(ev.TargetID)
	default:
		// Other event kinds carry no tab lifecycle information.
	}
}

// backoff waits the fixed reconnect delay. Returns false when ctx is done.
func (a *Adapter) backoff(ctx context.Context) bool {
	a.setState(StateBackoff)
	select {
	case <-ctx.Done():
		return false
	case <-time.After(ReconnectDelay):
		return true
	}
}
