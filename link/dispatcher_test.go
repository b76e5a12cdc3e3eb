package link

import (
	"testing"

	"github.com/katalix/go-pppoe-link/graph"
	"github.com/katalix/go-pppoe-link/pppoe"
)

func padiFrame(t *testing.T, service string, extra ...*pppoe.Tag) []byte {
	t.Helper()
	tags := append([]*pppoe.Tag{pppoe.NewStringTag(pppoe.TagTypeServiceName, service)}, extra...)
	f := &pppoe.Frame{
		SrcHWAddr: [6]byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff},
		DstHWAddr: [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		Code:      pppoe.CodePADI,
		Tags:      tags,
	}
	return f.Bytes()
}

func TestIncomingDispatcherAcceptsMatchingLink(t *testing.T) {
	h := &recordingHost{}
	reg := NewParentIfRegistry(testLogger(), graph.NullDialer{}, 4)
	p, _ := reg.Acquire("em0", "em0:", DefaultParentHook)
	_ = p.listeners.Subscribe("isp")

	s := NewLinkSession(testLogger(), "1", h, reg, Config{Iface: "em0", Service: "isp", Incoming: true})
	table := NewSessionTable()
	table.Add(s)

	d := NewIncomingDispatcher(testLogger(), 1234, h, table, nil)
	d.HandleFrame(p, "isp", padiFrame(t, "isp"))

	if s.State() != StateConnecting {
		t.Fatalf("got state %v, want Connecting", s.State())
	}
	if len(h.incoming) != 1 {
		t.Fatalf("expected one Incoming notification, got %d", len(h.incoming))
	}
}

func TestIncomingDispatcherAgentIDsExtracted(t *testing.T) {
	h := &recordingHost{}
	reg := NewParentIfRegistry(testLogger(), graph.NullDialer{}, 4)
	p, _ := reg.Acquire("em0", "em0:", DefaultParentHook)

	s := NewLinkSession(testLogger(), "1", h, reg, Config{Iface: "em0", Service: "isp", Incoming: true})
	table := NewSessionTable()
	table.Add(s)

	vendor := pppoe.NewTag(pppoe.TagTypeVendorSpecific, append([]byte{0x00, 0x00, 0x0d, 0xe9},
		append([]byte{1, byte(len("circuit-A"))}, append([]byte("circuit-A"), append([]byte{2, byte(len("remote-B"))}, []byte("remote-B")...)...)...)...))

	d := NewIncomingDispatcher(testLogger(), 1, h, table, nil)
	d.HandleFrame(p, "isp", padiFrame(t, "isp", vendor))

	if string(s.agentCID) != "circuit-A" {
		t.Fatalf("got agentCID %q, want %q", s.agentCID, "circuit-A")
	}
	if string(s.agentRID) != "remote-B" {
		t.Fatalf("got agentRID %q, want %q", s.agentRID, "remote-B")
	}
}

func TestIncomingDispatcherNoMatchIsDropped(t *testing.T) {
	h := &recordingHost{}
	reg := NewParentIfRegistry(testLogger(), graph.NullDialer{}, 4)
	p, _ := reg.Acquire("em0", "em0:", DefaultParentHook)

	s := NewLinkSession(testLogger(), "1", h, reg, Config{Iface: "em0", Service: "other", Incoming: true})
	table := NewSessionTable()
	table.Add(s)

	d := NewIncomingDispatcher(testLogger(), 1, h, table, nil)
	d.HandleFrame(p, "isp", padiFrame(t, "isp"))

	if s.State() != StateDown {
		t.Fatalf("non-matching link must not be touched, got state %v", s.State())
	}
}

func TestIncomingDispatcherSkipsBusyLink(t *testing.T) {
	h := &recordingHost{}
	reg := NewParentIfRegistry(testLogger(), graph.NullDialer{}, 4)
	p, _ := reg.Acquire("em0", "em0:", DefaultParentHook)

	s1 := NewLinkSession(testLogger(), "1", h, reg, Config{Iface: "em0", Service: "isp", Incoming: true})
	s2 := NewLinkSession(testLogger(), "2", h, reg, Config{Iface: "em0", Service: "isp", Incoming: true})
	table := NewSessionTable()
	table.Add(s1)
	table.Add(s2)

	_ = s1.Open(1) // makes s1 non-Down, so the scan should skip it

	d := NewIncomingDispatcher(testLogger(), 1, h, table, nil)
	d.HandleFrame(p, "isp", padiFrame(t, "isp"))

	if s2.State() != StateConnecting {
		t.Fatalf("expected the idle link s2 to accept, got state %v", s2.State())
	}
}

func TestIncomingDispatcherOverloadDropsFrame(t *testing.T) {
	h := &recordingHost{}
	reg := NewParentIfRegistry(testLogger(), graph.NullDialer{}, 4)
	p, _ := reg.Acquire("em0", "em0:", DefaultParentHook)

	s := NewLinkSession(testLogger(), "1", h, reg, Config{Iface: "em0", Service: "isp", Incoming: true})
	table := NewSessionTable()
	table.Add(s)

	d := NewIncomingDispatcher(testLogger(), 1, h, table, func() bool { return true })
	d.HandleFrame(p, "isp", padiFrame(t, "isp"))

	if s.State() != StateDown {
		t.Fatalf("overloaded dispatcher must drop the frame, got state %v", s.State())
	}
}

func TestIncomingDispatcherTemplateInstantiation(t *testing.T) {
	h := &recordingHost{}
	reg := NewParentIfRegistry(testLogger(), graph.NullDialer{}, 4)
	p, _ := reg.Acquire("em0", "em0:", DefaultParentHook)

	tmpl := NewLinkSession(testLogger(), "tmpl", h, reg, Config{Iface: "em0", Service: "isp", Incoming: true, Template: true})
	table := NewSessionTable()
	table.Add(tmpl)

	d := NewIncomingDispatcher(testLogger(), 1, h, table, nil)
	d.HandleFrame(p, "isp", padiFrame(t, "isp"))

	if tmpl.State() != StateDown {
		t.Fatalf("the template itself must remain untouched, got state %v", tmpl.State())
	}

	var instance *LinkSession
	for _, s := range table.All() {
		if s.LinkID() != "tmpl" {
			instance = s
		}
	}
	if instance == nil {
		t.Fatalf("expected a new instance to be registered in the session table")
	}
	if instance.State() != StateConnecting {
		t.Fatalf("got instance state %v, want Connecting", instance.State())
	}
}
