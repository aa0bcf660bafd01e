package types

// EventKind is the closed set of tab lifecycle events produced by a
// profile's tracker. Adding a kind without extending MessageType fails at
// the exhaustive switch below rather than silently falling through.
type EventKind int

const (
	TabOpened EventKind = iota
	TabUpdated
	TabClosed
)

// MessageType returns the subscriber-channel message type for the kind.
func (k EventKind) MessageType() string {
	switch k {
	case TabOpened:
		return MsgNewTab
	case TabUpdated:
		return MsgTabInfoChange
	case TabClosed:
		return MsgTabClosed
	}
	return ""
}

// TabEvent is one deduplicated tab lifecycle event. Closed events carry
// empty Title and Favicon placeholders.
type TabEvent struct {
	Kind    EventKind
	Profile Profile
	TabID   string
	Title   string
	Favicon string
}

// Message converts the event into its outbound wire shape. The tabs
// sequence always carries exactly one entry.
func (e TabEvent) Message() TabMessage {
	return TabMessage{
		Type:    e.Kind.MessageType(),
		Tabs:    []TabEntry{{TabID: e.TabID, Title: e.Title, Favicon: e.Favicon}},
		Profile: e.Profile,
	}
}
