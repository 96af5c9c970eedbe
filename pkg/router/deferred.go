package router

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"

	"github.com/google/uuid"
)

// Deferred is a loader value resolved after its match settles. Loaders
// return it inside their data; server collaborators stream its result.
type Deferred struct {
	id   string
	done chan struct{}

	mu    sync.Mutex
	value any
	err   error
}

// Defer starts fn in its own goroutine and returns its handle.
func Defer(ctx context.Context, fn func(ctx context.Context) (any, error)) *Deferred {
	d := &Deferred{id: uuid.NewString(), done: make(chan struct{})}
	go func() {
		v, err := safeCall(func() (any, error) { return fn(ctx) })
		d.mu.Lock()
		d.value, d.err = v, err
		d.mu.Unlock()
		close(d.done)
	}()
	return d
}

// ID identifies the value in a dehydrated payload.
func (d *Deferred) ID() string { return d.id }

// Done is closed once the value resolved.
func (d *Deferred) Done() <-chan struct{} { return d.done }

// Await waits for the value.
func (d *Deferred) Await(ctx context.Context) (any, error) {
	select {
	case <-d.done:
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.value, d.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// MarshalJSON encodes a placeholder referencing the value by id.
func (d *Deferred) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"$deferred": d.id})
}

// CollectDeferred finds the Deferred values reachable from v through
// pointers, maps, slices and exported struct fields.
func CollectDeferred(v any) []*Deferred {
	var out []*Deferred
	seen := make(map[uintptr]bool)
	var walk func(rv reflect.Value)
	walk = func(rv reflect.Value) {
		if !rv.IsValid() {
			return
		}
		if rv.CanInterface() {
			if d, ok := rv.Interface().(*Deferred); ok {
				if d != nil {
					out = append(out, d)
				}
				return
			}
		}
		switch rv.Kind() {
		case reflect.Pointer:
			if rv.IsNil() || seen[rv.Pointer()] {
				return
			}
			seen[rv.Pointer()] = true
			walk(rv.Elem())
		case reflect.Interface:
			walk(rv.Elem())
		case reflect.Map:
			iter := rv.MapRange()
			for iter.Next() {
				walk(iter.Value())
			}
		case reflect.Slice, reflect.Array:
			for i := 0; i < rv.Len(); i++ {
				walk(rv.Index(i))
			}
		case reflect.Struct:
			for i := 0; i < rv.NumField(); i++ {
				if rv.Type().Field(i).IsExported() {
					walk(rv.Field(i))
				}
			}
		}
	}
	walk(reflect.ValueOf(v))
	return out
}
