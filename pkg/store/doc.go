// Package store is a minimal observable value container.
//
// A Store holds one value. Set and Update commit a new value and notify
// subscribers synchronously. Notifications are delivered in commit order
// through a queue: a subscriber that commits from inside its callback
// has its commit delivered after the current one finishes, never in the
// middle of it.
//
// Selectors derive a slice of the value and keep its previous reference
// when the slice is structurally unchanged (see ReplaceEqualDeep), so
// consumers can skip work with a cheap reference comparison:
//
//	s := store.New(State{})
//	sel := store.NewSelector(s, func(st State) []Item { return st.Items })
//	defer sel.Close()
//
//	sel.Subscribe(func(items []Item) {
//	    render(items) // only called when Items really changed
//	})
package store
