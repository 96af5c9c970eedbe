package history

import (
	"github.com/vango-dev/routecore/pkg/routepath"
)

// Action describes how the current entry changed.
type Action string

const (
	ActionPush    Action = "PUSH"
	ActionReplace Action = "REPLACE"
	ActionBack    Action = "BACK"
	ActionForward Action = "FORWARD"
	ActionGo      Action = "GO"
)

// IsPop reports whether the action moved within existing entries instead
// of writing a new one.
func (a Action) IsPop() bool {
	return a == ActionBack || a == ActionForward || a == ActionGo
}

// State is the per-entry state stored alongside a location.
type State struct {
	// Key uniquely identifies the entry. Push and Replace generate one
	// when empty.
	Key string `json:"key"`

	// Index is the entry position in the stack, assigned by the history.
	Index int `json:"index"`

	// Values carries application state.
	Values map[string]any `json:"values,omitempty"`
}

// Location is a history entry.
type Location struct {
	Href     string `json:"href"`
	Pathname string `json:"pathname"`
	Search   string `json:"search"`
	Hash     string `json:"hash"`
	State    State  `json:"state"`
}

// Event is delivered to subscribers after the current entry changes.
type Event struct {
	Location Location
	Action   Action
	// Delta is the signed number of entries moved for pop actions.
	Delta int
}

// Listener receives history events.
type Listener func(Event)

// History is a navigable stack of locations.
type History interface {
	// Location returns the current entry.
	Location() Location

	// Length returns the number of entries.
	Length() int

	// Subscribe registers fn for every change and returns its unsubscribe.
	Subscribe(fn Listener) (unsubscribe func())

	// Push appends a new entry after the current one, dropping forward entries.
	Push(href string, state State)

	// Replace overwrites the current entry.
	Replace(href string, state State)

	// Go moves delta entries; out of range moves are clamped.
	Go(delta int)
	Back()
	Forward()
	CanGoBack() bool

	// Destroy releases subscribers. Later calls are no-ops.
	Destroy()
}

func newLocation(href string, state State) Location {
	h := routepath.ParseHref(href)
	return Location{
		Href:     h.String(),
		Pathname: h.Pathname,
		Search:   h.SearchStr,
		Hash:     h.Hash,
		State:    state,
	}
}
