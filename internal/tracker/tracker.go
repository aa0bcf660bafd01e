// Package tracker turns raw target lifecycle events into deduplicated tab
// events. The tracked-id set is the single dedup oracle: an id is a member
// iff an effective creation/discovery event occurred without a later
// destruction, and its url was resolved at the time of that event.
package tracker

import (
	"log/slog"
	"sync"

	"github.com/chromedp/cdproto/target"
	"github.com/dgnsrekt/tab_relay/internal/types"
)

// downloadsHubURL is a synthetic internal page that fires spurious info
// change events; it is never treated as a tab update.
const downloadsHubURL = "edge://downloads/hub"

// pageType is the only target kind tracked as a tab.
const pageType = "page"

// CleanFunc returns a display title for a raw title and url.
type CleanFunc func(title, url string) string

// FaviconFunc resolves a favicon string for a url, empty on failure.
type FaviconFunc func(url string) string

// Publisher receives deduplicated tab events in emission order.
type Publisher interface {
	Publish(evt types.TabEvent)
}

// Tracker tracks one profile's tab universe. Its set is mutated only here,
// never by the broadcaster or the command relay.
type Tracker struct {
	profile types.Profile
	clean   CleanFunc
	favicon FaviconFunc
	pub     Publisher

	mu    sync.Mutex
	known map[target.ID]struct{}
}

// New creates a tracker for the given profile.
func New(profile types.Profile, clean CleanFunc, favicon FaviconFunc, pub Publisher) *Tracker {
	return &Tracker{
		profile: profile,
		clean:   clean,
		favicon: favicon,
		pub:     pub,
		known:   make(map[target.ID]struct{}),
	}
}

// TargetCreated handles a creation event. Non-page targets are ignored, as
// are already-known ids. A creation without a resolved url is deferred: the
// id is not added, and the later info change event discovers it instead.
func (t *Tracker) TargetCreated(info *target.Info) {
	if info.Type != pageType {
		return
	}

	t.mu.Lock()
	if _, ok := t.known[info.TargetID]; ok {
		t.mu.Unlock()
		return
	}
	if info.URL == "" {
		t.mu.Unlock()
		return
	}
	t.known[info.TargetID] = struct{}{}
	t.mu.Unlock()

	slog.Debug("new tab", "profile", t.profile, "tab_id", info.TargetID, "url", info.URL)
	t.emit(types.TabOpened, info)
}

// TargetInfoChanged handles an update event. A change for an untracked id
// is a late-discovered creation and emits a tab-opened event instead.
func (t *Tracker) TargetInfoChanged(info *target.Info) {
	if info.Type != pageType || info.URL == downloadsHubURL {
		return
	}
	if info.URL == "" {
		return
	}

	t.mu.Lock()
	_, tracked := t.known[info.TargetID]
	if !tracked {
		t.known[info.TargetID] = struct{}{}
	}
	t.mu.Unlock()

	if tracked {
		slog.Debug("tab info changed", "profile", t.profile, "tab_id", info.TargetID, "url", info.URL)
		t.emit(types.TabUpdated, info)
		return
	}
	slog.Debug("tab discovered via info change", "profile", t.profile, "tab_id", info.TargetID, "url", info.URL)
	t.emit(types.TabOpened, info)
}

// TargetDestroyed handles a destruction event. Unknown ids emit nothing and
// change no state.
func (t *Tracker) TargetDestroyed(id target.ID) {
	t.mu.Lock()
	if _, ok := t.known[id]; !ok {
		t.mu.Unlock()
		return
	}
	delete(t.known, id)
	t.mu.Unlock()

	slog.Info("tab closed", "profile", t.profile, "tab_id", id)
	t.pub.Publish(types.TabEvent{Kind: types.TabClosed, Profile: t.profile, TabID: string(id)})
}

// Known reports whether the id is currently tracked.
func (t *Tracker) Known(id target.ID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.known[id]
	return ok
}

// Count returns the number of tracked tabs.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.known)
}

// emit resolves the display title and favicon, then publishes. Resolution
// happens outside the lock so it only delays this profile's own stream.
func (t *Tracker) emit(kind types.EventKind, info *target.Info) {
	t.pub.Publish(types.TabEvent{
		Kind:    kind,
		Profile: t.profile,
		TabID:   string(info.TargetID),
		Title:   t.clean(info.Title, info.URL),
		Favicon: t.favicon(info.URL),
	})
}
