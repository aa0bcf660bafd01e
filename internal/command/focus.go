// Package command serves the one-shot control channel: a single focus-or-open
// request per connection, always acknowledged.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chromedp/cdproto/target"
	"github.com/dgnsrekt/tab_relay/internal/browser"
	"github.com/dgnsrekt/tab_relay/internal/cdp"
	"github.com/dgnsrekt/tab_relay/internal/types"
)

// Browser is the slice of a debug endpoint the focus service needs.
type Browser interface {
	ListTabs(ctx context.Context) ([]*target.Info, error)
	Activate(ctx context.Context, id target.ID) error
}

// Opener launches browsers and opens urls in running instances.
type Opener interface {
	Launch(ctx context.Context, spec browser.LaunchSpec) error
	OpenURL(spec browser.LaunchSpec, url string) error
}

// Service resolves focus-or-open requests: activate a matching tab if one
// exists, otherwise open the url, launching the browser first if needed.
type Service struct {
	controls    map[types.Profile]Browser
	specs       map[types.Profile]browser.LaunchSpec
	launcher    Opener
	focusWindow func(profile types.Profile)
	priority    []string
}

// NewService wires a focus service. focusWindow may be nil.
func NewService(
	controls map[types.Profile]Browser,
	specs map[types.Profile]browser.LaunchSpec,
	launcher Opener,
	focusWindow func(profile types.Profile),
	priority []string,
) *Service {
	return &Service{
		controls:    controls,
		specs:       specs,
		launcher:    launcher,
		focusWindow: focusWindow,
		priority:    priority,
	}
}

// FocusOrOpen activates the first tab whose url contains the requested url,
// or opens the url as a new tab. A browser that is not running is launched
// with the url as its start page.
func (s *Service) FocusOrOpen(ctx context.Context, cmd types.FocusCommand) error {
	if !strings.HasPrefix(cmd.URL, "http://") && !strings.HasPrefix(cmd.URL, "https://") {
		return cdp.NewError(cdp.CodeValidation, "url must start with http:// or https://", nil)
	}

	profile := cmd.Profile.OrDefault()
	control, ok := s.controls[profile]
	if !ok {
		return cdp.NewError(cdp.CodeValidation, "unknown profile: "+string(profile), nil)
	}

	tabs, err := control.ListTabs(ctx)
	if err != nil {
		slog.Info("browser not running, launching", "profile", profile, "url", cmd.URL)
		spec := s.specs[profile]
		spec.StartURL = cmd.URL
		if err := s.launcher.Launch(ctx, spec); err != nil {
			return err
		}
		if tabs, err = control.ListTabs(ctx); err != nil {
			return fmt.Errorf("browser unreachable after launch: %w", err)
		}
	}

	pages := make([]*target.Info, 0, len(tabs))
	for _, tab := range tabs {
		if tab.Type == "page" {
			pages = append(pages, tab)
		}
	}
	cdp.SortTabsByPriority(pages, s.priority)

	want := normalizeURL(cmd.URL)
	for _, tab := range pages {
		if !strings.Contains(normalizeURL(tab.URL), want) {
			continue
		}
		if s.focusWindow != nil {
			s.focusWindow(profile)
		}
		if err := control.Activate(ctx, tab.TargetID); err != nil {
			return err
		}
		slog.Info("focused existing tab", "profile", profile, "tab_id", tab.TargetID, "url", tab.URL)
		return nil
	}

	slog.Info("no matching tab, opening url", "profile", profile, "url", cmd.URL)
	return s.launcher.OpenURL(s.specs[profile], cmd.URL)
}

// normalizeURL strips the query string and trailing slashes and lowercases,
// so request and tab urls compare on their stable part.
func normalizeURL(raw string) string {
	base, _, _ := strings.Cut(raw, "?")
	return strings.ToLower(strings.TrimRight(base, "/"))
}
