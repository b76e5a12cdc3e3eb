package link

import (
	"testing"
	"time"

	"github.com/katalix/go-pppoe-link/graph"
	"github.com/katalix/go-pppoe-link/host"
)

// recordingHost is a host.Host fake that records Up/Down/Incoming
// notifications for assertion, layered on host.NullHost's permissive
// defaults for everything else.
type recordingHost struct {
	host.NullHost
	ups    []string
	downs  []host.DownReason
	incoming []string
}

func (h *recordingHost) Up(linkID string) { h.ups = append(h.ups, linkID) }
func (h *recordingHost) Down(linkID string, reason host.DownReason, detail string) {
	h.downs = append(h.downs, reason)
}
func (h *recordingHost) Incoming(linkID string) { h.incoming = append(h.incoming, linkID) }

// Instantiate hands back a distinct instance id, unlike host.NullHost,
// so template-instantiation tests can tell the instance from its
// template.
func (h *recordingHost) Instantiate(templateID string) (string, error) {
	return templateID + "#1", nil
}

func newTestSession(t *testing.T, h host.Host, cfg Config) (*LinkSession, *ParentIfRegistry) {
	t.Helper()
	reg := NewParentIfRegistry(testLogger(), graph.NullDialer{}, 4)
	return NewLinkSession(testLogger(), "1", h, reg, cfg), reg
}

func TestLinkSessionOpenSuccessUp(t *testing.T) {
	h := &recordingHost{}
	s, _ := newTestSession(t, h, Config{Iface: "em0", Service: "isp"})

	if err := s.Open(1234); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if s.State() != StateConnecting {
		t.Fatalf("got state %v, want Connecting", s.State())
	}

	s.HandleSuccess()
	if s.State() != StateUp {
		t.Fatalf("got state %v, want Up", s.State())
	}
	if len(h.ups) != 1 {
		t.Fatalf("expected exactly one Up notification, got %d", len(h.ups))
	}
}

func TestLinkSessionOpenSuccessReadyThenOpen(t *testing.T) {
	h := &recordingHost{}
	s, reg := newTestSession(t, h, Config{Iface: "em0", Service: "isp", Incoming: true})
	defer func() { _ = reg }()

	p, err := s.parentRegistry.Acquire(s.cfg.Iface, s.parentPath, s.cfg.ParentHook)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	s.acceptIncoming(p, HookName(1, s.HookID()), [6]byte{1, 2, 3, 4, 5, 6}, "isp", nil, nil)
	if s.State() != StateConnecting {
		t.Fatalf("got state %v after acceptIncoming, want Connecting", s.State())
	}

	s.HandleSuccess()
	if s.State() != StateReady {
		t.Fatalf("got state %v, want Ready (session not yet opened)", s.State())
	}

	if err := s.OpenReady(); err != nil {
		t.Fatalf("OpenReady failed: %v", err)
	}
	if s.State() != StateUp {
		t.Fatalf("got state %v, want Up", s.State())
	}
}

func TestLinkSessionDuplicateSuccessIsNoOp(t *testing.T) {
	h := &recordingHost{}
	s, _ := newTestSession(t, h, Config{Iface: "em0", Service: "isp"})
	_ = s.Open(1)

	s.HandleSuccess()
	if len(h.ups) != 1 {
		t.Fatalf("expected one Up after first SUCCESS, got %d", len(h.ups))
	}
	s.HandleSuccess()
	if len(h.ups) != 1 {
		t.Fatalf("duplicate SUCCESS must be a no-op, got %d Up notifications", len(h.ups))
	}
}

func TestLinkSessionFailFromConnecting(t *testing.T) {
	h := &recordingHost{}
	s, _ := newTestSession(t, h, Config{Iface: "em0", Service: "isp"})
	_ = s.Open(1)

	s.HandleFail()
	if s.State() != StateDown {
		t.Fatalf("got state %v, want Down", s.State())
	}
	if len(h.downs) != 1 || h.downs[0] != host.ReasonConnectFailed {
		t.Fatalf("expected one ConnectFailed Down, got %v", h.downs)
	}
}

func TestLinkSessionDownStateInvariants(t *testing.T) {
	h := &recordingHost{}
	s, _ := newTestSession(t, h, Config{Iface: "em0", Service: "isp"})
	_ = s.Open(1)
	s.HandleFail()

	if s.State() != StateDown {
		t.Fatalf("expected Down")
	}
	if s.PeerMAC() != "" {
		t.Fatalf("expected empty peer MAC in Down state, got %q", s.PeerMAC())
	}
	if s.realService != "" || s.agentCID != nil || s.agentRID != nil || s.mpReply {
		t.Fatalf("expected identity fields cleared in Down state")
	}
}

func TestLinkSessionPeerCloseFromUpReportsDropped(t *testing.T) {
	h := &recordingHost{}
	s, _ := newTestSession(t, h, Config{Iface: "em0", Service: "isp"})
	_ = s.Open(1)
	s.HandleSuccess() // -> Up

	s.HandlePeerClose()
	if s.State() != StateDown {
		t.Fatalf("got state %v, want Down after peer close", s.State())
	}
	if len(h.downs) != 1 || h.downs[0] != host.ReasonDropped {
		t.Fatalf("expected Dropped reason, got %v", h.downs)
	}
}

func TestLinkSessionCloseIsIdempotent(t *testing.T) {
	h := &recordingHost{}
	s, _ := newTestSession(t, h, Config{Iface: "em0", Service: "isp"})

	s.Close() // already Down: no-op
	if len(h.downs) != 0 {
		t.Fatalf("Close on a Down session must not notify the host, got %v", h.downs)
	}

	_ = s.Open(1)
	s.Close()
	if s.State() != StateDown {
		t.Fatalf("got state %v, want Down", s.State())
	}
	if len(h.downs) != 1 || h.downs[0] != host.ReasonManual {
		t.Fatalf("expected one Manual Down, got %v", h.downs)
	}
}

func TestLinkSessionMaxPayloadEcho(t *testing.T) {
	h := &recordingHost{}
	s, _ := newTestSession(t, h, Config{Iface: "em0", Service: "isp", MaxPayload: 1500})
	_ = s.Open(1)

	s.HandleSetMaxPReply(1492)
	if s.mpReply {
		t.Fatalf("mismatched echo must not set mpReply")
	}
	if s.EffectiveMRU(1492) != 1492 {
		t.Fatalf("expected fallback to default MRU on unconfirmed max-payload")
	}

	s.HandleSetMaxPReply(1500)
	if !s.mpReply {
		t.Fatalf("matching echo must set mpReply")
	}
	if s.EffectiveMRU(1492) != 1500 {
		t.Fatalf("expected negotiated max-payload once confirmed")
	}
}

func TestLinkSessionSessionIDDiagnosticOnly(t *testing.T) {
	h := &recordingHost{}
	s, _ := newTestSession(t, h, Config{Iface: "em0", Service: "isp"})
	_ = s.Open(1)

	s.HandleSessionID(42)
	if s.peerSessionID != 42 {
		t.Fatalf("expected peerSessionID to be recorded")
	}
	if s.State() != StateConnecting {
		t.Fatalf("SESSIONID must not change state, got %v", s.State())
	}
}

func TestLinkSessionConnectTimeout(t *testing.T) {
	h := &recordingHost{}
	s, _ := newTestSession(t, h, Config{Iface: "em0", Service: "isp"})
	_ = s.Open(1)
	s.stopTimer()
	s.timer = time.AfterFunc(time.Millisecond, s.onTimeout)

	time.Sleep(20 * time.Millisecond)

	if s.State() != StateDown {
		t.Fatalf("got state %v, want Down after timeout", s.State())
	}
	if len(h.downs) != 1 || h.downs[0] != host.ReasonConnectFailed {
		t.Fatalf("expected ConnectFailed reason on timeout, got %v", h.downs)
	}
}
