// Package window raises browser windows on the local desktop.
package window

import (
	"log/slog"
	"os/exec"

	"github.com/dgnsrekt/tab_relay/internal/types"
)

// Focuser raises a profile's browser window by title substring using
// wmctrl. Focus is cosmetic; every failure is logged and swallowed so tab
// activation still proceeds.
type Focuser struct {
	titles map[types.Profile]string
}

// NewFocuser maps profiles to their window title substrings. Profiles with
// an empty title are skipped at focus time.
func NewFocuser(titles map[types.Profile]string) *Focuser {
	return &Focuser{titles: titles}
}

// Focus raises the window for the profile.
func (f *Focuser) Focus(profile types.Profile) {
	title, ok := f.titles[profile]
	if !ok || title == "" {
		return
	}
	if err := exec.Command("wmctrl", "-a", title).Run(); err != nil {
		slog.Debug("window focus failed", "profile", profile, "title", title, "error", err)
		return
	}
	slog.Debug("window focused", "profile", profile, "title", title)
}
