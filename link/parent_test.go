package link

import (
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/katalix/go-pppoe-link/graph"
)

func testLogger() log.Logger {
	return log.NewNopLogger()
}

func TestDerivePath(t *testing.T) {
	cases := []struct{ iface, want string }{
		{"em0", "em0:"},
		{"em0.100", "em0_100:"},
		{"eth0:1", "eth0_1:"},
	}
	for _, c := range cases {
		if got := DerivePath(c.iface); got != c.want {
			t.Errorf("DerivePath(%q) = %q, want %q", c.iface, got, c.want)
		}
	}
}

func TestParentIfRegistryAcquireRelease(t *testing.T) {
	reg := NewParentIfRegistry(testLogger(), graph.NullDialer{}, 4)

	p1, err := reg.Acquire("em0", "em0:", DefaultParentHook)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if p1.Refs() != 1 {
		t.Fatalf("got refs %d, want 1", p1.Refs())
	}

	p2, err := reg.Acquire("em0", "em0:", DefaultParentHook)
	if err != nil {
		t.Fatalf("second Acquire failed: %v", err)
	}
	if p1 != p2 {
		t.Fatalf("expected the same ParentIf to be returned for the same node path")
	}
	if p1.Refs() != 2 {
		t.Fatalf("got refs %d, want 2", p1.Refs())
	}

	reg.Release(p2)
	if p1.Refs() != 1 {
		t.Fatalf("got refs %d after one release, want 1", p1.Refs())
	}

	reg.Release(p1)
	if p1.Refs() != 0 {
		t.Fatalf("got refs %d after final release, want 0", p1.Refs())
	}
	if _, ok := reg.entries[p1.NodePath]; ok {
		t.Fatalf("expected entry to be removed once refs reached zero")
	}
}

func TestParentIfRegistryCapacityExceeded(t *testing.T) {
	reg := NewParentIfRegistry(testLogger(), graph.NullDialer{}, 1)

	if _, err := reg.Acquire("em0", "em0:", DefaultParentHook); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	if _, err := reg.Acquire("em1", "em1:", DefaultParentHook); err == nil {
		t.Fatalf("expected ErrNoSlot once capacity is exceeded")
	}
}

func TestParentIfRegistryDistinctParentsGetDistinctEntries(t *testing.T) {
	reg := NewParentIfRegistry(testLogger(), graph.NullDialer{}, 4)

	p1, _ := reg.Acquire("em0", "em0:", DefaultParentHook)
	p2, _ := reg.Acquire("em1", "em1:", DefaultParentHook)
	if p1 == p2 {
		t.Fatalf("expected distinct ParentIf entries for distinct node paths")
	}
}
