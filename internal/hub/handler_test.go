package hub

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/dgnsrekt/tab_relay/internal/titles"
	"github.com/dgnsrekt/tab_relay/internal/types"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

type fakeControl struct {
	mu        sync.Mutex
	tabs      []*target.Info
	listErr   error
	activated []target.ID
	closed    []target.ID
}

func (f *fakeControl) ListTabs(context.Context) ([]*target.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tabs, f.listErr
}

func (f *fakeControl) Activate(_ context.Context, id target.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activated = append(f.activated, id)
	return nil
}

func (f *fakeControl) CloseTab(_ context.Context, id target.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, id)
	return nil
}

func (f *fakeControl) closedIDs() []target.ID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]target.ID(nil), f.closed...)
}

func (f *fakeControl) activatedIDs() []target.ID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]target.ID(nil), f.activated...)
}

func newTestHub(personal, work *fakeControl) *Hub {
	cleaner := titles.Default()
	return New(Options{
		Broker: NewBroker(),
		Controls: map[types.Profile]BrowserControl{
			types.ProfilePersonal: personal,
			types.ProfileWork:     work,
		},
		Clean: cleaner.Clean,
	})
}

func dialHub(t *testing.T, h *Hub) (*httptest.Server, *wsClient) {
	t.Helper()
	ts := httptest.NewServer(h.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, _, err := ws.Dial(context.Background(), url)
	if err != nil {
		t.Fatalf("ws.Dial(%q): %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return ts, &wsClient{t: t, conn: conn}
}

type wsClient struct {
	t    *testing.T
	conn net.Conn
}

func (c *wsClient) send(v any) {
	c.t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		c.t.Fatalf("marshal client frame: %v", err)
	}
	if err := wsutil.WriteClientText(c.conn, data); err != nil {
		c.t.Fatalf("write client frame: %v", err)
	}
}

func (c *wsClient) read() types.TabMessage {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	data, err := wsutil.ReadServerText(c.conn)
	if err != nil {
		c.t.Fatalf("read server frame: %v", err)
	}
	var msg types.TabMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.t.Fatalf("unmarshal server frame %q: %v", data, err)
	}
	return msg
}

func TestFirstConnectionSendsOneSnapshotPerProfile(t *testing.T) {
	personal := &fakeControl{tabs: []*target.Info{
		{TargetID: "A", Type: "page", Title: "Example - YouTube", URL: "https://www.youtube.com/watch?v=1"},
		{TargetID: "W", Type: "service_worker", Title: "", URL: "https://example.com/sw.js"},
	}}
	work := &fakeControl{listErr: errors.New("connection refused")}
	h := newTestHub(personal, work)

	_, client := dialHub(t, h)
	client.send(types.ClientMessage{Type: types.MsgFirstConnection})

	byProfile := map[types.Profile]types.TabMessage{}
	for i := 0; i < 2; i++ {
		msg := client.read()
		byProfile[msg.Profile] = msg
	}

	got := byProfile[types.ProfilePersonal]
	if got.Type != types.MsgCurrentTabs {
		t.Fatalf("personal snapshot type = %q; want %q", got.Type, types.MsgCurrentTabs)
	}
	if len(got.Tabs) != 1 || got.Tabs[0].TabID != "A" || got.Tabs[0].Title != "Example" {
		t.Fatalf("personal snapshot tabs = %+v; want one cleaned page entry for A", got.Tabs)
	}

	// The unreachable profile reports no_tabs_open instead of failing.
	if got := byProfile[types.ProfileWork]; got.Type != types.MsgNoTabsOpen || len(got.Tabs) != 0 {
		t.Fatalf("work snapshot = %+v; want empty %q", got, types.MsgNoTabsOpen)
	}
}

func TestSnapshotEmptyBrowserReportsCurrentTabs(t *testing.T) {
	// A reachable browser with nothing open still gets a current_tabs
	// listing; no_tabs_open is reserved for an unreachable browser.
	h := newTestHub(&fakeControl{}, &fakeControl{})
	_, client := dialHub(t, h)

	client.send(types.ClientMessage{Type: types.MsgFirstConnection})
	for i := 0; i < 2; i++ {
		msg := client.read()
		if msg.Type != types.MsgCurrentTabs {
			t.Fatalf("snapshot type for %q = %q; want %q", msg.Profile, msg.Type, types.MsgCurrentTabs)
		}
		if len(msg.Tabs) != 0 {
			t.Fatalf("snapshot tabs for %q = %+v; want empty", msg.Profile, msg.Tabs)
		}
	}
}

func TestCloseTabRequiresTabID(t *testing.T) {
	personal := &fakeControl{}
	h := newTestHub(personal, &fakeControl{})

	_, client := dialHub(t, h)

	// The frame without a tabId is dropped; the connection stays usable.
	client.send(types.ClientMessage{Type: types.MsgCloseTab, Profile: types.ProfilePersonal})
	client.send(types.ClientMessage{Type: types.MsgCloseTab, TabID: "A1", Profile: types.ProfilePersonal})

	// A snapshot round trip guarantees the earlier frames were processed.
	client.send(types.ClientMessage{Type: types.MsgFirstConnection})
	client.read()
	client.read()

	if got := personal.closedIDs(); len(got) != 1 || got[0] != target.ID("A1") {
		t.Fatalf("closed ids = %v; want [A1]", got)
	}
}

func TestFocusTabRequiresTabID(t *testing.T) {
	personal := &fakeControl{}
	h := newTestHub(personal, &fakeControl{})

	_, client := dialHub(t, h)

	client.send(types.ClientMessage{Type: types.MsgFocusTab, Profile: types.ProfilePersonal})
	client.send(types.ClientMessage{Type: types.MsgFocusTab, TabID: "B2", Profile: types.ProfilePersonal})

	client.send(types.ClientMessage{Type: types.MsgFirstConnection})
	client.read()
	client.read()

	if got := personal.activatedIDs(); len(got) != 1 || got[0] != target.ID("B2") {
		t.Fatalf("activated ids = %v; want [B2]", got)
	}
}

func TestFocusTabActivatesOnDefaultProfile(t *testing.T) {
	personal := &fakeControl{}
	work := &fakeControl{}
	h := newTestHub(personal, work)

	_, client := dialHub(t, h)

	// No profile in the frame means the default profile handles it.
	client.send(types.ClientMessage{Type: types.MsgFocusTab, TabID: "B2"})
	client.send(types.ClientMessage{Type: types.MsgFirstConnection})
	client.read()
	client.read()

	if got := personal.activatedIDs(); len(got) != 1 || got[0] != target.ID("B2") {
		t.Fatalf("personal activated ids = %v; want [B2]", got)
	}
	if got := work.activatedIDs(); len(got) != 0 {
		t.Fatalf("work activated ids = %v; want none", got)
	}
}

func TestMalformedFrameKeepsConnectionOpen(t *testing.T) {
	h := newTestHub(&fakeControl{}, &fakeControl{})
	_, client := dialHub(t, h)

	if err := wsutil.WriteClientText(client.conn, []byte(`{"type":`)); err != nil {
		t.Fatalf("write malformed frame: %v", err)
	}

	client.send(types.ClientMessage{Type: types.MsgFirstConnection})
	if msg := client.read(); msg.Type != types.MsgNoTabsOpen && msg.Type != types.MsgCurrentTabs {
		t.Fatalf("frame after malformed input = %+v; want a snapshot", msg)
	}
}

func TestLiveEventAfterSnapshot(t *testing.T) {
	h := newTestHub(&fakeControl{}, &fakeControl{})
	_, client := dialHub(t, h)

	client.send(types.ClientMessage{Type: types.MsgFirstConnection})
	client.read()
	client.read()

	h.Broker().Publish(types.TabEvent{
		Kind:    types.TabOpened,
		Profile: types.ProfileWork,
		TabID:   "C3",
		Title:   "Docs",
	})

	msg := client.read()
	if msg.Type != types.MsgNewTab || msg.Profile != types.ProfileWork {
		t.Fatalf("live frame = %+v; want %q for work", msg, types.MsgNewTab)
	}
	if len(msg.Tabs) != 1 || msg.Tabs[0].TabID != "C3" {
		t.Fatalf("live frame tabs = %+v; want one entry for C3", msg.Tabs)
	}
}

func TestStatusCountsSubscribers(t *testing.T) {
	h := New(Options{
		Broker: NewBroker(),
		Controls: map[types.Profile]BrowserControl{
			types.ProfilePersonal: &fakeControl{},
			types.ProfileWork:     &fakeControl{},
		},
		AdapterState: func(types.Profile) string { return "connected" },
	})

	_, _ = dialHub(t, h)

	deadline := time.Now().Add(2 * time.Second)
	for h.Broker().SubscriberCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("SubscriberCount() = %d; want 1", h.Broker().SubscriberCount())
		}
		time.Sleep(10 * time.Millisecond)
	}

	info := h.Status(context.Background())
	if info.Subscribers != 1 {
		t.Fatalf("Status().Subscribers = %d; want 1", info.Subscribers)
	}
	if info.Adapters[types.ProfilePersonal] != "connected" || info.Adapters[types.ProfileWork] != "connected" {
		t.Fatalf("Status().Adapters = %v; want connected for both profiles", info.Adapters)
	}
}
