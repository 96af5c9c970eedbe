package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID    string
	Title string
}

type appState struct {
	Items   []item
	Counter int
	Meta    map[string]string
}

func TestSelect_SkipsUnrelatedCommits(t *testing.T) {
	s := New(appState{Items: []item{{ID: "1", Title: "a"}}})

	var calls int
	unsub := Select(s, func(st appState) []item { return st.Items }, func([]item) { calls++ })
	defer unsub()

	// New slice, same content: not a change.
	s.Update(func(st appState) appState {
		st.Items = []item{{ID: "1", Title: "a"}}
		st.Counter++
		return st
	})
	assert.Equal(t, 0, calls)

	s.Update(func(st appState) appState {
		st.Items = append([]item{}, st.Items...)
		st.Items[0].Title = "b"
		return st
	})
	assert.Equal(t, 1, calls)
}

func TestSelector_KeepsReference(t *testing.T) {
	s := New(appState{Items: []item{{ID: "1"}, {ID: "2"}}})
	sel := NewSelector(s, func(st appState) []item { return st.Items })
	defer sel.Close()

	before := sel.Get()
	s.Set(appState{Items: []item{{ID: "1"}, {ID: "2"}}, Counter: 1})
	after := sel.Get()

	require.Len(t, after, 2)
	assert.Same(t, &before[0], &after[0], "unchanged slice must keep its backing array")

	var got [][]item
	sel.Subscribe(func(v []item) { got = append(got, v) })
	s.Set(appState{Items: []item{{ID: "1"}, {ID: "3"}}})

	require.Len(t, got, 1)
	assert.Equal(t, "3", got[0][1].ID)
}

func TestSelector_Close(t *testing.T) {
	s := New(appState{})
	sel := NewSelector(s, func(st appState) int { return st.Counter })

	var calls int
	sel.Subscribe(func(int) { calls++ })
	s.Set(appState{Counter: 1})
	sel.Close()
	s.Set(appState{Counter: 2})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, sel.Get())
}

func TestSelect_MapSlice(t *testing.T) {
	s := New(appState{Meta: map[string]string{"a": "1"}})

	var got []map[string]string
	unsub := Select(s, func(st appState) map[string]string { return st.Meta }, func(m map[string]string) {
		got = append(got, m)
	})
	defer unsub()

	s.Set(appState{Meta: map[string]string{"a": "1"}})
	s.Set(appState{Meta: map[string]string{"a": "1", "b": "2"}})

	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0]["b"])
}
