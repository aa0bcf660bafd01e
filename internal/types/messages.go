package types

// Subscriber-channel message types.
const (
	// Outbound.
	MsgNewTab        = "new_tab"
	MsgTabInfoChange = "tab_info_change"
	MsgTabClosed     = "tab_closed"
	MsgCurrentTabs   = "current_tabs"
	MsgNoTabsOpen    = "no_tabs_open"

	// Inbound.
	MsgCloseTab        = "close_tab"
	MsgFocusTab        = "focus_tab"
	MsgFirstConnection = "first_connection"
)

// TabEntry is one tab inside an outbound message.
type TabEntry struct {
	TabID   string `json:"tabId"`
	Title   string `json:"title"`
	Favicon string `json:"favicon"`
}

// TabMessage is an outbound subscriber-channel message.
type TabMessage struct {
	Type    string     `json:"type"`
	Tabs    []TabEntry `json:"tabs"`
	Profile Profile    `json:"profile"`
}

// ClientMessage is an inbound subscriber-channel message.
type ClientMessage struct {
	Type    string  `json:"type"`
	TabID   string  `json:"tabId,omitempty"`
	Profile Profile `json:"profile,omitempty"`
}

// FocusCommand is the one-shot channel payload.
type FocusCommand struct {
	URL     string  `json:"url"`
	Profile Profile `json:"profile"`
}

// StatusInfo summarizes the running server for the status endpoint.
type StatusInfo struct {
	Subscribers int                `json:"subscribers"`
	Adapters    map[Profile]string `json:"adapters"`
}
