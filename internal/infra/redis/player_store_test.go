package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"learnearn/internal/app"
)

func TestPlayerStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewPlayerStore(newClient(mr), time.Minute)
	const addr = "0x1234567890123456789012345678901234567890"

	_ = store.GetOrCreate(addr, func() *app.Player {
		return app.NewPlayer(app.NewAccount(addr, "avatar-3", nil, nil, nil, nil))
	})
	if !mr.Exists("learnearn:player:" + addr) {
		t.Fatalf("expected redis key to be set")
	}
	if v, _ := mr.Get("learnearn:player:" + addr); v != "avatar-3" {
		t.Fatalf("expected avatar marker, got %q", v)
	}

	online, err := store.Online(context.Background())
	if err != nil {
		t.Fatalf("online: %v", err)
	}
	if len(online) != 1 || online[0] != addr {
		t.Fatalf("expected %s online, got %v", addr, online)
	}

	store.DeleteIfIdle(addr)
	if mr.Exists("learnearn:player:" + addr) {
		t.Fatalf("expected redis key to be removed")
	}
}

func TestPlayerStoreRefreshesMarkerOnActivity(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewPlayerStore(newClient(mr), time.Minute)
	const addr = "0x1234567890123456789012345678901234567890"
	_ = store.GetOrCreate(addr, func() *app.Player {
		return app.NewPlayer(app.NewAccount(addr, "avatar-1", nil, nil, nil, nil))
	})

	for i := 0; i < 3; i++ {
		mr.FastForward(40 * time.Second)
		if _, ok := store.Get(addr); !ok {
			t.Fatalf("expected player to stay registered")
		}
	}
	if !mr.Exists("learnearn:player:" + addr) {
		t.Fatalf("expected marker to outlive the ttl while the player is active")
	}

	mr.FastForward(61 * time.Second)
	online, err := store.Online(context.Background())
	if err != nil {
		t.Fatalf("online: %v", err)
	}
	if len(online) != 0 {
		t.Fatalf("expected marker to expire once the player goes quiet, got %v", online)
	}
}
