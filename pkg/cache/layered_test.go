package cache

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"
)

type fakeLayer struct {
	name    string
	data    map[string]string
	failing bool
	sets    int
}

func newFakeLayer(name string) *fakeLayer {
	return &fakeLayer{name: name, data: map[string]string{}}
}

func (l *fakeLayer) Name() string { return l.name }

func (l *fakeLayer) Get(_ context.Context, key string) (string, bool, error) {
	if l.failing {
		return "", false, errors.New("layer down")
	}
	v, ok := l.data[key]
	return v, ok, nil
}

func (l *fakeLayer) Set(_ context.Context, key, value string, _ time.Duration) error {
	if l.failing {
		return errors.New("layer down")
	}
	l.sets++
	l.data[key] = value
	return nil
}

func (l *fakeLayer) Delete(_ context.Context, key string) error {
	if l.failing {
		return errors.New("layer down")
	}
	delete(l.data, key)
	return nil
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestLayeredGetBackfillsInnerLayer(t *testing.T) {
	inner := newFakeLayer("memory")
	outer := newFakeLayer("redis")
	outer.data["k"] = "v"

	c := NewLayered(discardLogger(), time.Minute, inner, outer)

	val, found := c.Get(context.Background(), "k")
	if !found || val != "v" {
		t.Fatalf("expected hit with v, got %q found=%v", val, found)
	}

	if got, ok := inner.data["k"]; !ok || got != "v" {
		t.Errorf("expected inner layer backfilled with v, got %q ok=%v", got, ok)
	}
}

func TestLayeredInnerHitDoesNotTouchOuter(t *testing.T) {
	inner := newFakeLayer("memory")
	outer := newFakeLayer("redis")
	inner.data["k"] = "v"

	c := NewLayered(discardLogger(), time.Minute, inner, outer)

	if _, found := c.Get(context.Background(), "k"); !found {
		t.Fatal("expected inner hit")
	}
	if outer.sets != 0 {
		t.Errorf("outer layer written on inner hit: %d sets", outer.sets)
	}
}

func TestLayeredFailingLayerDegradesToMiss(t *testing.T) {
	inner := newFakeLayer("memory")
	inner.failing = true
	outer := newFakeLayer("redis")
	outer.data["k"] = "v"

	c := NewLayered(discardLogger(), time.Minute, inner, outer)

	val, found := c.Get(context.Background(), "k")
	if !found || val != "v" {
		t.Fatalf("expected outer hit despite inner failure, got %q found=%v", val, found)
	}
}

func TestLayeredAllLayersMiss(t *testing.T) {
	c := NewLayered(discardLogger(), time.Minute, newFakeLayer("memory"), newFakeLayer("redis"))

	if _, found := c.Get(context.Background(), "nope"); found {
		t.Fatal("expected miss")
	}
}

func TestLayeredSetAndDeletePropagate(t *testing.T) {
	inner := newFakeLayer("memory")
	outer := newFakeLayer("redis")
	c := NewLayered(discardLogger(), time.Minute, inner, outer)

	ctx := context.Background()
	c.Set(ctx, "k", "v", time.Minute)
	if inner.data["k"] != "v" || outer.data["k"] != "v" {
		t.Fatal("set did not propagate to all layers")
	}

	c.Delete(ctx, "k")
	if _, ok := inner.data["k"]; ok {
		t.Error("delete did not reach inner layer")
	}
	if _, ok := outer.data["k"]; ok {
		t.Error("delete did not reach outer layer")
	}
}
