package command

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/chromedp/cdproto/target"
)

func startTestServer(t *testing.T, svc *Service) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv := NewServer(ln.Addr().String(), svc)
	go func() {
		if err := srv.Serve(ctx, ln); err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	}()
	return ln.Addr().String()
}

func roundTrip(t *testing.T, addr, payload string) string {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial %s: %v", addr, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	if _, err := conn.Write([]byte(payload)); err != nil {
		t.Fatalf("write request: %v", err)
	}
	reply, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read ack: %v", err)
	}
	return string(reply)
}

func TestServerAcksAndActivates(t *testing.T) {
	b := &fakeBrowser{tabs: []*target.Info{
		{TargetID: "T1", Type: "page", URL: "https://example.com/page"},
	}}
	svc := newTestService(b, &fakeOpener{}, nil)
	addr := startTestServer(t, svc)

	got := roundTrip(t, addr, `{"url":"https://example.com/page","profile":"personal"}`)
	if got != "OK" {
		t.Fatalf("ack = %q; want %q", got, "OK")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.activated) != 1 || b.activated[0] != target.ID("T1") {
		t.Fatalf("activated = %v; want [T1]", b.activated)
	}
}

func TestServerAcksMalformedRequest(t *testing.T) {
	svc := newTestService(&fakeBrowser{}, &fakeOpener{}, nil)
	addr := startTestServer(t, svc)

	if got := roundTrip(t, addr, `{"url":`); got != "OK" {
		t.Fatalf("ack for malformed request = %q; want %q", got, "OK")
	}
}

func TestServerAcksRejectedURL(t *testing.T) {
	b := &fakeBrowser{}
	opener := &fakeOpener{}
	svc := newTestService(b, opener, nil)
	addr := startTestServer(t, svc)

	if got := roundTrip(t, addr, `{"url":"ftp://example.com/file"}`); got != "OK" {
		t.Fatalf("ack for rejected url = %q; want %q", got, "OK")
	}
	if len(b.activated)+len(opener.opened)+len(opener.launched) != 0 {
		t.Fatalf("side effects for rejected url; want none")
	}
}

func TestServerHandlesSequentialConnections(t *testing.T) {
	b := &fakeBrowser{tabs: []*target.Info{
		{TargetID: "T1", Type: "page", URL: "https://example.com/page"},
	}}
	svc := newTestService(b, &fakeOpener{}, nil)
	addr := startTestServer(t, svc)

	for i := 0; i < 3; i++ {
		if got := roundTrip(t, addr, `{"url":"https://example.com/page"}`); got != "OK" {
			t.Fatalf("ack[%d] = %q; want %q", i, got, "OK")
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.activated) != 3 {
		t.Fatalf("activated %d times; want 3", len(b.activated))
	}
}
