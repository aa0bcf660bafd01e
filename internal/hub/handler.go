package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/chromedp/cdproto/target"
	"github.com/dgnsrekt/tab_relay/internal/cdp"
	"github.com/dgnsrekt/tab_relay/internal/types"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// BrowserControl is the slice of a debug endpoint the hub needs to answer
// snapshot requests and relay control messages.
type BrowserControl interface {
	ListTabs(ctx context.Context) ([]*target.Info, error)
	Activate(ctx context.Context, id target.ID) error
	CloseTab(ctx context.Context, id target.ID) error
}

// Options wires a Hub to the rest of the server.
type Options struct {
	Broker   *Broker
	Controls map[types.Profile]BrowserControl
	Clean    func(title, url string) string
	Favicon  func(url string) string

	// FocusWindow raises the OS window for a profile before a tab is
	// activated. Optional.
	FocusWindow func(profile types.Profile)

	// AdapterState reports a profile's event stream state for the status
	// endpoint. Optional.
	AdapterState func(profile types.Profile) string

	Priority []string
}

// Hub owns the subscriber channel endpoint and relays control messages.
type Hub struct {
	broker       *Broker
	controls     map[types.Profile]BrowserControl
	clean        func(title, url string) string
	favicon      func(url string) string
	focusWindow  func(profile types.Profile)
	adapterState func(profile types.Profile) string
	priority     []string
}

// New creates a Hub from its wiring.
func New(opts Options) *Hub {
	h := &Hub{
		broker:       opts.Broker,
		controls:     opts.Controls,
		clean:        opts.Clean,
		favicon:      opts.Favicon,
		focusWindow:  opts.FocusWindow,
		adapterState: opts.AdapterState,
		priority:     opts.Priority,
	}
	if h.clean == nil {
		h.clean = func(title, _ string) string { return title }
	}
	if h.favicon == nil {
		h.favicon = func(string) string { return "" }
	}
	return h
}

// Broker returns the hub's broker, for publishing tab events.
func (h *Hub) Broker() *Broker { return h.broker }

// Handler upgrades requests to the subscriber channel and serves them until
// the peer disconnects.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			slog.Warn("subscriber upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}

		sub := h.broker.add(conn)
		defer h.broker.remove(sub.id)

		for {
			data, err := wsutil.ReadClientText(conn)
			if err != nil {
				slog.Debug("subscriber read loop exit", "subscriber", sub.id, "error", err)
				return
			}
			h.dispatch(r.Context(), sub, data)
		}
	}
}

// dispatch routes one inbound frame. Malformed or unknown frames are logged
// and skipped; the connection stays open.
func (h *Hub) dispatch(ctx context.Context, sub *subscriber, data []byte) {
	var msg types.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Warn("malformed subscriber frame", "subscriber", sub.id, "error", err)
		return
	}

	switch msg.Type {
	case types.MsgFirstConnection:
		h.handleFirstConnection(ctx, sub)
	case types.MsgFocusTab:
		h.handleFocusTab(ctx, msg)
	case types.MsgCloseTab:
		h.handleCloseTab(ctx, msg)
	default:
		slog.Debug("ignoring subscriber frame", "subscriber", sub.id, "type", msg.Type)
	}
}

// handleFirstConnection sends one snapshot per profile. Live frames arriving
// while the snapshots are built are parked and released afterwards, so the
// subscriber never sees an event that predates its snapshot baseline.
func (h *Hub) handleFirstConnection(ctx context.Context, sub *subscriber) {
	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	sub.beginSnapshot()
	defer sub.endSnapshot()

	for _, profile := range types.Profiles() {
		snap := h.buildSnapshot(ctx, profile)
		data, err := json.Marshal(snap)
		if err != nil {
			slog.Error("marshal snapshot", "profile", profile, "error", err)
			continue
		}
		sub.send(data)
		slog.Info("snapshot sent", "subscriber", sub.id, "profile", profile, "type", snap.Type, "tabs", len(snap.Tabs))
	}
}

func (h *Hub) handleFocusTab(ctx context.Context, msg types.ClientMessage) {
	if msg.TabID == "" {
		slog.Warn("focus_tab without tabId, dropping")
		return
	}
	profile := msg.Profile.OrDefault()
	control, err := h.control(profile)
	if err != nil {
		slog.Warn("focus_tab for unknown profile, dropping", "profile", msg.Profile)
		return
	}
	if h.focusWindow != nil {
		h.focusWindow(profile)
	}
	if err := control.Activate(ctx, target.ID(msg.TabID)); err != nil {
		slog.Error("activate tab failed", "profile", profile, "tab_id", msg.TabID, "error", err)
		return
	}
	slog.Info("tab focused", "profile", profile, "tab_id", msg.TabID)
}

func (h *Hub) handleCloseTab(ctx context.Context, msg types.ClientMessage) {
	if msg.TabID == "" {
		slog.Warn("close_tab without tabId, dropping")
		return
	}
	profile := msg.Profile.OrDefault()
	control, err := h.control(profile)
	if err != nil {
		slog.Warn("close_tab for unknown profile, dropping", "profile", msg.Profile)
		return
	}
	if err := control.CloseTab(ctx, target.ID(msg.TabID)); err != nil {
		slog.Error("close tab failed", "profile", profile, "tab_id", msg.TabID, "error", err)
		return
	}
	slog.Info("tab closed by subscriber", "profile", profile, "tab_id", msg.TabID)
}

func (h *Hub) control(profile types.Profile) (BrowserControl, error) {
	control, ok := h.controls[profile]
	if !ok {
		return nil, cdp.NewError(cdp.CodeValidation, "unknown profile: "+string(profile), nil)
	}
	return control, nil
}

// Profiles returns the configured profiles.
func (h *Hub) Profiles() []types.Profile {
	return types.Profiles()
}

// ProfileTabs lists a profile's current tabs for the HTTP API.
func (h *Hub) ProfileTabs(ctx context.Context, profile types.Profile) ([]types.TabEntry, error) {
	if !profile.Valid() {
		return nil, cdp.NewError(cdp.CodeValidation, "unknown profile: "+string(profile), nil)
	}
	return h.listTabEntries(ctx, profile)
}

// Status summarizes subscribers and adapter connection states.
func (h *Hub) Status(ctx context.Context) types.StatusInfo {
	info := types.StatusInfo{
		Subscribers: h.broker.SubscriberCount(),
		Adapters:    make(map[types.Profile]string),
	}
	for _, profile := range types.Profiles() {
		if h.adapterState != nil {
			info.Adapters[profile] = h.adapterState(profile)
		} else {
			info.Adapters[profile] = "unknown"
		}
	}
	return info
}
