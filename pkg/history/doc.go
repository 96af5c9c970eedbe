// Package history models a navigable stack of locations, the back/forward
// source of truth a router subscribes to and commands.
//
// Every entry carries a State with a Key and an Index. Keys are unique per
// entry, which lets a subscriber tell its own commits apart from pops
// (back, forward, go) that it has to accept as already applied.
//
// MemoryHistory is an in-process implementation used for servers, tests
// and command line tools:
//
//	h := history.NewMemoryHistory("/posts")
//	unsub := h.Subscribe(func(ev history.Event) {
//	    fmt.Println(ev.Action, ev.Location.Href)
//	})
//	defer unsub()
//
//	h.Push("/posts/1", history.State{})
//	h.Back()
package history
