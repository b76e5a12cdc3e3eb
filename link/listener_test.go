package link

import (
	"testing"

	"github.com/katalix/go-pppoe-link/graph"
)

func TestListenHookName(t *testing.T) {
	if got, want := ListenHookName("isp"), "listen-isp"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestListenerSetSubscribeUnsubscribeRefCounting(t *testing.T) {
	reg := NewParentIfRegistry(testLogger(), graph.NullDialer{}, 4)
	p, err := reg.Acquire("em0", "em0:", DefaultParentHook)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if err := p.listeners.Subscribe("isp"); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if !p.listeners.Has("isp") {
		t.Fatalf("expected listener entry for isp")
	}

	if err := p.listeners.Subscribe("isp"); err != nil {
		t.Fatalf("second Subscribe failed: %v", err)
	}
	if p.listeners.entries["isp"].refs != 2 {
		t.Fatalf("got refs %d, want 2", p.listeners.entries["isp"].refs)
	}

	p.listeners.Unsubscribe("isp")
	if !p.listeners.Has("isp") {
		t.Fatalf("entry should survive one unsubscribe out of two refs")
	}

	p.listeners.Unsubscribe("isp")
	if p.listeners.Has("isp") {
		t.Fatalf("entry should be gone once refs reach zero")
	}
}

func TestReleaseParentDropsAllListeners(t *testing.T) {
	reg := NewParentIfRegistry(testLogger(), graph.NullDialer{}, 4)
	p, _ := reg.Acquire("em0", "em0:", DefaultParentHook)

	_ = p.listeners.Subscribe("isp")
	_ = p.listeners.Subscribe("other")

	reg.Release(p)

	if len(p.listeners.entries) != 0 {
		t.Fatalf("expected all listener entries to be dropped on parent release")
	}
}
