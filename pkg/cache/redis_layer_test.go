package cache

import (
	"testing"
	"time"
)

func TestRedisLayerKeyPrefix(t *testing.T) {
	withPrefix := &RedisLayer{prefix: "docqa"}
	if got := withPrefix.key("answer:u1:q"); got != "docqa:answer:u1:q" {
		t.Errorf("key = %q, want docqa:answer:u1:q", got)
	}

	bare := &RedisLayer{}
	if got := bare.key("answer:u1:q"); got != "answer:u1:q" {
		t.Errorf("key = %q, want answer:u1:q", got)
	}
}

func TestRedisLayerWriteTTLFloor(t *testing.T) {
	l := &RedisLayer{minTTL: time.Hour}

	if got := l.writeTTL(5 * time.Minute); got != time.Hour {
		t.Errorf("writeTTL(5m) = %v, want 1h", got)
	}
	if got := l.writeTTL(2 * time.Hour); got != 2*time.Hour {
		t.Errorf("writeTTL(2h) = %v, want 2h", got)
	}
	if got := l.writeTTL(0); got != time.Hour {
		t.Errorf("writeTTL(0) = %v, want 1h", got)
	}
}
