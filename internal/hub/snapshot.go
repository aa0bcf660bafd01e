package hub

import (
	"context"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/dgnsrekt/tab_relay/internal/cdp"
	"github.com/dgnsrekt/tab_relay/internal/types"
)

const snapshotTimeout = 10 * time.Second

// buildSnapshot produces the current-state message for one profile. Only an
// unreachable browser reports no_tabs_open; a reachable browser with nothing
// open reports an empty current_tabs listing.
func (h *Hub) buildSnapshot(ctx context.Context, profile types.Profile) types.TabMessage {
	entries, err := h.listTabEntries(ctx, profile)
	if err != nil {
		slog.Warn("snapshot listing failed", "profile", profile, "error", err)
		return types.TabMessage{Type: types.MsgNoTabsOpen, Tabs: []types.TabEntry{}, Profile: profile}
	}
	return types.TabMessage{Type: types.MsgCurrentTabs, Tabs: entries, Profile: profile}
}

// listTabEntries lists, filters, orders, and decorates a profile's tabs.
func (h *Hub) listTabEntries(ctx context.Context, profile types.Profile) ([]types.TabEntry, error) {
	control, err := h.control(profile)
	if err != nil {
		return nil, err
	}

	all, err := control.ListTabs(ctx)
	if err != nil {
		return nil, err
	}

	pages := make([]*target.Info, 0, len(all))
	for _, tab := range all {
		if tab.Type == "page" {
			pages = append(pages, tab)
		}
	}
	cdp.SortTabsByPriority(pages, h.priority)

	entries := make([]types.TabEntry, 0, len(pages))
	for _, tab := range pages {
		entries = append(entries, types.TabEntry{
			TabID:   string(tab.TargetID),
			Title:   h.clean(tab.Title, tab.URL),
			Favicon: h.favicon(tab.URL),
		})
	}
	return entries, nil
}
