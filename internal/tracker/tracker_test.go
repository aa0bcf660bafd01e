package tracker

import (
	"testing"

	"github.com/chromedp/cdproto/target"
	"github.com/dgnsrekt/tab_relay/internal/types"
)

type capturePub struct {
	events []types.TabEvent
}

func (p *capturePub) Publish(evt types.TabEvent) { p.events = append(p.events, evt) }

func identClean(title, _ string) string { return title }
func noFavicon(string) string           { return "" }

func newTestTracker(pub *capturePub) *Tracker {
	return New(types.ProfilePersonal, identClean, noFavicon, pub)
}

func page(id target.ID, title, url string) *target.Info {
	return &target.Info{TargetID: id, Type: "page", Title: title, URL: url}
}

func TestCreatedThenChangedThenDestroyed(t *testing.T) {
	pub := &capturePub{}
	tr := newTestTracker(pub)

	tr.TargetCreated(page("A1", "Example", "https://example.com/"))
	tr.TargetInfoChanged(page("A1", "Example 2", "https://example.com/2"))
	tr.TargetDestroyed("A1")

	if len(pub.events) != 3 {
		t.Fatalf("published %d events; want 3", len(pub.events))
	}
	wantKinds := []types.EventKind{types.TabOpened, types.TabUpdated, types.TabClosed}
	for i, kind := range wantKinds {
		if pub.events[i].Kind != kind {
			t.Fatalf("events[%d].Kind = %v; want %v", i, pub.events[i].Kind, kind)
		}
		if pub.events[i].TabID != "A1" {
			t.Fatalf("events[%d].TabID = %q; want %q", i, pub.events[i].TabID, "A1")
		}
	}
	if tr.Count() != 0 {
		t.Fatalf("Count() after destroy = %d; want 0", tr.Count())
	}
}

func TestDuplicateCreatedIgnored(t *testing.T) {
	pub := &capturePub{}
	tr := newTestTracker(pub)

	tr.TargetCreated(page("A1", "Example", "https://example.com/"))
	tr.TargetCreated(page("A1", "Example", "https://example.com/"))

	if len(pub.events) != 1 {
		t.Fatalf("published %d events; want 1", len(pub.events))
	}
	if tr.Count() != 1 {
		t.Fatalf("Count() = %d; want 1", tr.Count())
	}
}

func TestCreatedWithoutURLDeferredToInfoChange(t *testing.T) {
	pub := &capturePub{}
	tr := newTestTracker(pub)

	tr.TargetCreated(page("A1", "", ""))
	if len(pub.events) != 0 {
		t.Fatalf("published %d events for url-less creation; want 0", len(pub.events))
	}
	if tr.Known("A1") {
		t.Fatalf("Known(A1) after url-less creation = true; want false")
	}

	// The resolved url arrives via the change event, which discovers the tab.
	tr.TargetInfoChanged(page("A1", "Example", "https://example.com/"))
	if len(pub.events) != 1 || pub.events[0].Kind != types.TabOpened {
		t.Fatalf("events after late discovery = %+v; want one tab-opened", pub.events)
	}
	if !tr.Known("A1") {
		t.Fatalf("Known(A1) after late discovery = false; want true")
	}
}

func TestInfoChangedForTrackedTab(t *testing.T) {
	pub := &capturePub{}
	tr := newTestTracker(pub)

	tr.TargetCreated(page("A1", "Example", "https://example.com/"))
	tr.TargetInfoChanged(page("A1", "Other", "https://example.com/other"))

	if len(pub.events) != 2 || pub.events[1].Kind != types.TabUpdated {
		t.Fatalf("events = %+v; want opened then updated", pub.events)
	}
	if pub.events[1].Title != "Other" {
		t.Fatalf("update title = %q; want %q", pub.events[1].Title, "Other")
	}
}

func TestNonPageTargetsIgnored(t *testing.T) {
	pub := &capturePub{}
	tr := newTestTracker(pub)

	worker := &target.Info{TargetID: "W1", Type: "service_worker", URL: "https://example.com/sw.js"}
	tr.TargetCreated(worker)
	tr.TargetInfoChanged(worker)

	if len(pub.events) != 0 {
		t.Fatalf("published %d events for non-page target; want 0", len(pub.events))
	}
}

func TestDownloadsHubExcluded(t *testing.T) {
	pub := &capturePub{}
	tr := newTestTracker(pub)

	tr.TargetInfoChanged(page("D1", "Downloads", "edge://downloads/hub"))
	if len(pub.events) != 0 {
		t.Fatalf("published %d events for downloads hub; want 0", len(pub.events))
	}
	if tr.Known("D1") {
		t.Fatalf("Known(D1) = true; want false")
	}
}

func TestDestroyUnknownIgnored(t *testing.T) {
	pub := &capturePub{}
	tr := newTestTracker(pub)

	tr.TargetDestroyed("missing")
	if len(pub.events) != 0 {
		t.Fatalf("published %d events for unknown destroy; want 0", len(pub.events))
	}
}

func TestEmitUsesCleanerAndFavicon(t *testing.T) {
	pub := &capturePub{}
	clean := func(title, url string) string { return "cleaned:" + title }
	favicon := func(url string) string { return "icon-for:" + url }
	tr := New(types.ProfileWork, clean, favicon, pub)

	tr.TargetCreated(page("A1", "Raw", "https://example.com/"))

	if len(pub.events) != 1 {
		t.Fatalf("published %d events; want 1", len(pub.events))
	}
	evt := pub.events[0]
	if evt.Title != "cleaned:Raw" {
		t.Fatalf("Title = %q; want %q", evt.Title, "cleaned:Raw")
	}
	if evt.Favicon != "icon-for:https://example.com/" {
		t.Fatalf("Favicon = %q; want %q", evt.Favicon, "icon-for:https://example.com/")
	}
	if evt.Profile != types.ProfileWork {
		t.Fatalf("Profile = %q; want %q", evt.Profile, types.ProfileWork)
	}
}
