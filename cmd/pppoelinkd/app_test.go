package main

import (
	"testing"
	"time"

	"github.com/go-kit/kit/log"

	"github.com/katalix/go-pppoe-link/daemonconfig"
	"github.com/katalix/go-pppoe-link/graph"
	"github.com/katalix/go-pppoe-link/link"
	"github.com/katalix/go-pppoe-link/pppoe"
)

func testConfig(t *testing.T, toml string) *daemonconfig.Config {
	t.Helper()
	cfg, err := daemonconfig.LoadString(toml)
	if err != nil {
		t.Fatalf("LoadString failed: %v", err)
	}
	return cfg
}

func TestNewApplicationWiresListeningLink(t *testing.T) {
	cfg := testConfig(t, `
[[link]]
name = "wan0"
iface = "em0"
service = "isp"
incoming = true
`)

	app, err := newApplication(log.NewNopLogger(), cfg, graph.NullDialer{})
	if err != nil {
		t.Fatalf("newApplication failed: %v", err)
	}

	sess, ok := app.table.Get("wan0")
	if !ok {
		t.Fatalf("expected link wan0 to be registered")
	}
	if sess.Parent() == nil || !sess.Parent().Listening("isp") {
		t.Fatalf("expected wan0's parent to be listening on service isp")
	}
	if len(app.pumped) != 1 {
		t.Fatalf("expected exactly one pumped parent, got %d", len(app.pumped))
	}
}

func TestNewApplicationOpensStaticOutgoingLink(t *testing.T) {
	cfg := testConfig(t, `
[[link]]
name = "wan1"
iface = "em1"
service = "isp"
static = true
`)

	app, err := newApplication(log.NewNopLogger(), cfg, graph.NullDialer{})
	if err != nil {
		t.Fatalf("newApplication failed: %v", err)
	}

	sess, ok := app.table.Get("wan1")
	if !ok {
		t.Fatalf("expected link wan1 to be registered")
	}
	if sess.State() != link.StateConnecting {
		t.Fatalf("expected the static outgoing link to be opened at startup, got state %v", sess.State())
	}
}

func TestApplicationRunRoutesIncomingFrameThroughParentPump(t *testing.T) {
	cfg := testConfig(t, `
[[link]]
name = "wan0"
iface = "em0"
service = "isp"
incoming = true
`)

	app, err := newApplication(log.NewNopLogger(), cfg, graph.NullDialer{})
	if err != nil {
		t.Fatalf("newApplication failed: %v", err)
	}

	go app.run()
	defer close(app.closeChan)

	sess, _ := app.table.Get("wan0")
	ch := sess.Parent().Channel().(*graph.NullChannel)

	f := &pppoe.Frame{
		SrcHWAddr: [6]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06},
		DstHWAddr: [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		Code:      pppoe.CodePADI,
		Tags:      []*pppoe.Tag{pppoe.NewStringTag(pppoe.TagTypeServiceName, "isp")},
	}
	ch.InjectData(graph.Frame{Hook: "listen", Bytes: f.Bytes()})

	// wan0 has no 'static' flag, so an incoming request instantiates a
	// fresh session rather than reusing the template in place.
	deadline := time.After(2 * time.Second)
	for {
		var instance *link.LinkSession
		for _, s := range app.table.All() {
			if s.LinkID() != "wan0" {
				instance = s
			}
		}
		if instance != nil && instance.State() == link.StateConnecting {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for the injected PADI to be accepted (template state=%v)", sess.State())
		default:
			time.Sleep(time.Millisecond)
		}
	}
}
