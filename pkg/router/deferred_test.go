package router

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeferredAwait(t *testing.T) {
	d := Defer(context.Background(), func(context.Context) (any, error) {
		return "comments", nil
	})

	v, err := d.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "comments", v)

	select {
	case <-d.Done():
	default:
		t.Fatal("Done not closed after Await returned")
	}
}

func TestDeferredError(t *testing.T) {
	boom := errors.New("boom")
	d := Defer(context.Background(), func(context.Context) (any, error) { return nil, boom })

	_, err := d.Await(context.Background())
	assert.ErrorIs(t, err, boom)

	p := Defer(context.Background(), func(context.Context) (any, error) { panic("bad") })
	_, err = p.Await(context.Background())
	var pe *PanicError
	assert.ErrorAs(t, err, &pe)
}

func TestDeferredAwaitCancelled(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	d := Defer(context.Background(), func(context.Context) (any, error) {
		<-release
		return nil, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := d.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDeferredMarshalJSON(t *testing.T) {
	d := Defer(context.Background(), func(context.Context) (any, error) { return 1, nil })

	b, err := json.Marshal(map[string]any{"slow": d})
	require.NoError(t, err)
	assert.JSONEq(t, `{"slow":{"$deferred":"`+d.ID()+`"}}`, string(b))
}

func TestCollectDeferred(t *testing.T) {
	ctx := context.Background()
	mk := func() *Deferred {
		return Defer(ctx, func(context.Context) (any, error) { return nil, nil })
	}
	a, b, c := mk(), mk(), mk()

	type page struct {
		Title    string
		Comments *Deferred
		Related  []any
		hidden   *Deferred
	}
	data := map[string]any{
		"page": &page{
			Title:    "hello",
			Comments: a,
			Related:  []any{"x", b},
			hidden:   mk(),
		},
		"extra": c,
		"none":  (*Deferred)(nil),
	}

	got := CollectDeferred(data)
	assert.ElementsMatch(t, []*Deferred{a, b, c}, got)
	assert.Empty(t, CollectDeferred(nil))
	assert.Empty(t, CollectDeferred("plain"))
}
