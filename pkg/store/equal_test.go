package store

import (
	"errors"
	"reflect"
	"testing"
	"testing/quick"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type leaf struct {
	Name string
	Tags []string
}

type tree struct {
	ID     int
	Leaves []leaf
	Index  map[string]int
	Child  *leaf
}

func cloneTree(t tree) tree {
	out := tree{ID: t.ID}
	if t.Leaves != nil {
		out.Leaves = make([]leaf, len(t.Leaves))
		for i, l := range t.Leaves {
			out.Leaves[i] = cloneLeaf(l)
		}
	}
	if t.Index != nil {
		out.Index = make(map[string]int, len(t.Index))
		for k, v := range t.Index {
			out.Index[k] = v
		}
	}
	if t.Child != nil {
		c := cloneLeaf(*t.Child)
		out.Child = &c
	}
	return out
}

func cloneLeaf(l leaf) leaf {
	out := leaf{Name: l.Name}
	if l.Tags != nil {
		out.Tags = append([]string(nil), l.Tags...)
	}
	return out
}

func TestReplaceEqualDeep_EqualInputsKeepPrev(t *testing.T) {
	prop := func(v tree) bool {
		prev := v
		next := cloneTree(v)
		got, same := ReplaceEqualDeep(prev, next)
		if !same {
			return false
		}
		if len(prev.Leaves) > 0 && &got.Leaves[0] != &prev.Leaves[0] {
			return false
		}
		return got.Child == prev.Child
	}
	require.NoError(t, quick.Check(prop, nil))
}

func TestReplaceEqualDeep_ChangedInputsShareUnchanged(t *testing.T) {
	prop := func(v tree, name string) bool {
		if v.Child == nil || v.Child.Name == name || len(v.Leaves) == 0 {
			return true
		}
		prev := v
		next := cloneTree(v)
		next.Child.Name = name

		got, same := ReplaceEqualDeep(prev, next)
		if same {
			return false
		}
		if !reflect.DeepEqual(got, next) {
			return false
		}
		// The changed branch is a new pointer; the untouched slice is shared.
		return got.Child != prev.Child && &got.Leaves[0] == &prev.Leaves[0]
	}
	require.NoError(t, quick.Check(prop, nil))
}

func TestReplaceEqualDeep_ResultEqualsNext(t *testing.T) {
	prop := func(a, b tree) bool {
		got, _ := ReplaceEqualDeep(a, b)
		return reflect.DeepEqual(got, b)
	}
	require.NoError(t, quick.Check(prop, nil))
}

func TestReplaceEqualDeep_Cases(t *testing.T) {
	t.Run("slice element sharing", func(t *testing.T) {
		a := &leaf{Name: "a"}
		b := &leaf{Name: "b"}
		prev := []*leaf{a, b}
		next := []*leaf{{Name: "a"}, {Name: "c"}}

		got, same := ReplaceEqualDeep(prev, next)
		require.False(t, same)
		assert.Same(t, a, got[0])
		assert.Equal(t, "c", got[1].Name)
	})

	t.Run("grown slice", func(t *testing.T) {
		prev := []leaf{{Name: "a", Tags: []string{"x"}}}
		next := []leaf{{Name: "a", Tags: []string{"x"}}, {Name: "b"}}

		got, same := ReplaceEqualDeep(prev, next)
		require.False(t, same)
		require.Len(t, got, 2)
		assert.Same(t, &prev[0].Tags[0], &got[0].Tags[0])
	})

	t.Run("nil vs empty", func(t *testing.T) {
		_, same := ReplaceEqualDeep([]int(nil), []int{})
		assert.False(t, same)
		_, same = ReplaceEqualDeep([]int{}, []int{})
		assert.True(t, same)
	})

	t.Run("interface values", func(t *testing.T) {
		prev := any(map[string]any{"a": []any{1.0, "x"}})
		next := any(map[string]any{"a": []any{1.0, "x"}})
		got, same := ReplaceEqualDeep(prev, next)
		assert.True(t, same)
		assert.Equal(t, reflect.ValueOf(prev).Pointer(), reflect.ValueOf(got).Pointer())

		_, same = ReplaceEqualDeep(any(1), any("1"))
		assert.False(t, same)

		got, same = ReplaceEqualDeep(any(1), nil)
		assert.False(t, same)
		assert.Nil(t, got)
	})

	t.Run("unexported fields use deep equal", func(t *testing.T) {
		now := time.Now()
		_, same := ReplaceEqualDeep(now, now)
		assert.True(t, same)
		_, same = ReplaceEqualDeep(now, now.Add(time.Second))
		assert.False(t, same)
	})

	t.Run("errors compare structurally", func(t *testing.T) {
		_, same := ReplaceEqualDeep(errors.New("x"), errors.New("x"))
		assert.True(t, same)
		_, same = ReplaceEqualDeep(errors.New("x"), errors.New("y"))
		assert.False(t, same)
	})

	t.Run("funcs compare by identity", func(t *testing.T) {
		f := func() {}
		_, same := ReplaceEqualDeep(f, f)
		assert.True(t, same)
		_, same = ReplaceEqualDeep(f, func() {})
		assert.False(t, same)
	})

	t.Run("cycles terminate", func(t *testing.T) {
		type node struct {
			Name string
			Next *node
		}
		a := &node{Name: "a"}
		a.Next = a
		b := &node{Name: "a"}
		b.Next = b

		got, _ := ReplaceEqualDeep(a, b)
		assert.Equal(t, "a", got.Name)
	})
}
