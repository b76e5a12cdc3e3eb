package link

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/katalix/go-pppoe-link/graph"
	"github.com/katalix/go-pppoe-link/host"
	"github.com/katalix/go-pppoe-link/pppoe"
)

// nextHookID allocates the integer link ids this process's hook names
// are built from (HookName). It is independent of a link's
// configured name: a template and the instances it spawns all share
// one name, but each runtime session - template or instance - needs
// its own hook identity on the wire.
var nextHookID int64

func allocHookID() int { return int(atomic.AddInt64(&nextHookID, 1)) }

// Config is a LinkSession's mutable configuration, set at
// construction and subsequently driven by ConfigSurface.
type Config struct {
	Iface      string
	ParentHook string
	Service    string
	ACName     string
	MaxPayload uint16
	MACFormat  MACFormat
	Incoming   bool
	Static     bool
	Template   bool
}

// Events driven into a LinkSession's fsm. "success" itself is not an
// event name: HandleSuccess resolves it to evSuccessRdy or
// evSuccessUp depending on the opened flag before calling
// handleEvent, since the outgoing edge depends on session state the
// generic table has no way to inspect.
const (
	evOpen        = "open"
	evOpenReady   = "open_ready"
	evSuccessRdy  = "success_ready"
	evSuccessUp   = "success_up"
	evFail        = "fail"
	evPeerClose   = "peer_close"
	evTimeout     = "timeout"
	evUserClose   = "user_close"
)

// LinkSession is the per-link PPPoE state machine: DOWN, CONNECTING,
// READY, and UP.
type LinkSession struct {
	logger         log.Logger
	linkID         string
	hookID         int
	host           host.Host
	parentRegistry *ParentIfRegistry

	cfg Config

	fsm       fsm
	direction Direction
	opened    bool

	parentPath  string
	parent      *ParentIf
	sessionHook string

	peerMAC       [6]byte
	realService   string
	agentCID      []byte
	agentRID      []byte
	peerSessionID uint32
	mpReply       bool

	timer *time.Timer
}

// NewLinkSession creates a session for linkID, initially DOWN.
func NewLinkSession(logger log.Logger, linkID string, h host.Host, reg *ParentIfRegistry, cfg Config) *LinkSession {
	s := &LinkSession{
		logger:         log.With(logger, "link_id", linkID),
		linkID:         linkID,
		hookID:         allocHookID(),
		host:           h,
		parentRegistry: reg,
		cfg:            cfg,
	}
	if s.cfg.ParentHook == "" {
		s.cfg.ParentHook = DefaultParentHook
	}
	s.parentPath = DerivePath(cfg.Iface)
	s.fsm = fsm{
		current: StateDown,
		table: []eventDesc{
			{StateDown, StateConnecting, []string{evOpen}, nil},
			{StateConnecting, StateReady, []string{evSuccessRdy}, func([]interface{}) {
				level.Debug(s.logger).Log("message", "session ready, awaiting open")
			}},
			{StateConnecting, StateUp, []string{evSuccessUp}, func([]interface{}) { s.wireUp() }},
			{StateReady, StateUp, []string{evOpenReady, evSuccessUp}, func([]interface{}) { s.wireUp() }},
			{StateConnecting, StateDown, []string{evFail, evPeerClose, evTimeout}, func(args []interface{}) {
				s.teardownAndNotify(args[0].(host.DownReason), args[1].(string))
			}},
			{StateReady, StateDown, []string{evFail, evPeerClose}, func(args []interface{}) {
				s.teardownAndNotify(args[0].(host.DownReason), args[1].(string))
			}},
			{StateUp, StateDown, []string{evPeerClose}, func(args []interface{}) {
				s.teardownAndNotify(args[0].(host.DownReason), args[1].(string))
			}},
			{StateConnecting, StateDown, []string{evUserClose}, func([]interface{}) { s.finishClose() }},
			{StateReady, StateDown, []string{evUserClose}, func([]interface{}) { s.finishClose() }},
			{StateUp, StateDown, []string{evUserClose}, func([]interface{}) { s.finishClose() }},
		},
	}
	return s
}

// LinkID returns the session's configured link identifier (the
// config-file name), used for host/table lookups and logging.
func (s *LinkSession) LinkID() string { return s.linkID }

// HookID returns the integer link id this session's hook names are
// built from, distinct from its configured name.
func (s *LinkSession) HookID() int { return s.hookID }

// State returns the session's current lifecycle state.
func (s *LinkSession) State() State { return s.fsm.current }

// Opened reports the user-intent flag, independent of network state.
func (s *LinkSession) Opened() bool { return s.opened }

// Service returns the configured (requested) service name.
func (s *LinkSession) Service() string { return s.cfg.Service }

// Iface returns the configured parent interface name.
func (s *LinkSession) Iface() string { return s.cfg.Iface }

// ParentPath returns the derived graph node path for the session's
// parent interface.
func (s *LinkSession) ParentPath() string { return s.parentPath }

// Parent returns the session's acquired ParentIf, or nil if DOWN.
func (s *LinkSession) Parent() *ParentIf { return s.parent }

// IncomingEnabled reports whether this session is eligible to accept
// an incoming PADI (LINK_CONF_INCOMING), per the host's own record of
// the link's options rather than this session's local copy of it.
func (s *LinkSession) IncomingEnabled() bool {
	return s.host.Enabled(s.linkID, host.OptionIncoming)
}

// PeerMAC returns the peer's hardware address, rendered per the
// session's configured MAC format.
func (s *LinkSession) PeerMAC() string {
	if s.fsm.current == StateDown {
		return ""
	}
	return FormatMAC(s.peerMAC, s.cfg.MACFormat)
}

// sessionHookName builds the per-session graph hook name this session
// binds to.
func (s *LinkSession) sessionHookName(pid int) string {
	return HookName(pid, s.hookID)
}

// Open originates an outbound session. It returns ErrNotOpenable if
// the session is not DOWN.
func (s *LinkSession) Open(pid int) error {
	if s.fsm.current != StateDown {
		return ErrNotOpenable
	}

	s.opened = true
	s.direction = DirectionOutgoing
	s.host.Deny(s.linkID, host.OptionACFComp)

	p, err := s.parentRegistry.Acquire(s.cfg.Iface, s.parentPath, s.cfg.ParentHook)
	if err != nil {
		s.opened = false
		return err
	}

	sessionHook := s.sessionHookName(pid)
	if s.cfg.MaxPayload > 0 {
		if err := p.channel.SendMsg(graph.CmdSetMaxP, maxPayloadPayload(s.cfg.MaxPayload)); err != nil {
			level.Warn(s.logger).Log("message", "failed to send max-payload request", "error", err)
		}
	}

	if err := p.channel.Connect(sessionHook, s.cfg.Service); err != nil {
		_ = p.channel.Disconnect(sessionHook)
		s.parentRegistry.Release(p)
		s.opened = false
		s.host.Down(s.linkID, host.ReasonError, err.Error())
		return wrapGraphErr("connect", err)
	}

	s.parent = p
	s.sessionHook = sessionHook
	s.realService = s.cfg.Service
	s.startTimer()
	_ = s.fsm.handleEvent(evOpen)

	level.Info(s.logger).Log("message", "session opening", "iface", s.cfg.Iface, "service", s.cfg.Service)
	return nil
}

// acceptIncoming places the session into CONNECTING as the result of
// IncomingDispatcher accepting a PADI/PADR for this link. peerMAC,
// realService and the agent ids are already known by the time this is
// called.
func (s *LinkSession) acceptIncoming(p *ParentIf, sessionHook string, peerMAC [6]byte, realService string, agentCID, agentRID []byte) {
	s.direction = DirectionIncoming
	s.parent = p
	s.sessionHook = sessionHook
	s.peerMAC = peerMAC
	s.realService = realService
	s.agentCID = agentCID
	s.agentRID = agentRID
	s.startTimer()
	_ = s.fsm.handleEvent(evOpen)
	s.host.Incoming(s.linkID)

	level.Info(s.logger).Log("message", "session accepted incoming request",
		"service", realService, "peer_mac", FormatMAC(peerMAC, s.cfg.MACFormat))
}

// Close marks the session as no longer wanted by the user and tears
// down any in-progress or established state. It is a no-op if the
// session is already DOWN.
func (s *LinkSession) Close() {
	if s.fsm.current == StateDown {
		s.opened = false
		return
	}
	_ = s.fsm.handleEvent(evUserClose)
}

// Shutdown closes the session and releases all resources it holds,
// for use when the link itself (not just its session) is being torn
// down.
func (s *LinkSession) Shutdown() {
	s.Close()
	if s.parent != nil {
		s.parent.listeners.Unsubscribe(s.cfg.Service)
		s.parentRegistry.Release(s.parent)
		s.parent = nil
	}
}

// finishClose is the evUserClose callback: tear down state and notify
// the host with the manual-close reason.
func (s *LinkSession) finishClose() {
	s.opened = false
	s.teardown()
	s.host.Down(s.linkID, host.ReasonManual, "closed")
	level.Info(s.logger).Log("message", "session closed")
}

// teardownAndNotify is the shared callback for FAIL/CLOSE/timeout
// transitions to DOWN.
func (s *LinkSession) teardownAndNotify(reason host.DownReason, detail string) {
	s.teardown()
	s.host.Down(s.linkID, reason, detail)
}

// teardown disconnects the session hook, stops the timer and clears
// per-session identity fields, without changing opened or notifying
// the host.
func (s *LinkSession) teardown() {
	s.stopTimer()
	if s.parent != nil && s.sessionHook != "" {
		if err := s.parent.channel.Disconnect(s.sessionHook); err != nil {
			level.Warn(s.logger).Log("message", "error disconnecting session hook", "error", err)
		}
	}
	s.sessionHook = ""
	s.peerMAC = [6]byte{}
	s.realService = ""
	s.agentCID = nil
	s.agentRID = nil
	s.mpReply = false
}

func (s *LinkSession) startTimer() {
	s.timer = time.AfterFunc(ConnectTimeout, s.onTimeout)
}

func (s *LinkSession) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *LinkSession) onTimeout() {
	if s.fsm.current != StateConnecting {
		return
	}
	level.Warn(s.logger).Log("message", "connect timeout")
	_ = s.fsm.handleEvent(evTimeout, host.ReasonConnectFailed, "connect timeout")
}

// HandleSuccess reacts to a graph SUCCESS message. A duplicate SUCCESS
// once the session has already left CONNECTING is a no-op.
func (s *LinkSession) HandleSuccess() {
	if s.fsm.current != StateConnecting {
		return
	}
	if s.opened {
		_ = s.fsm.handleEvent(evSuccessUp)
		return
	}
	_ = s.fsm.handleEvent(evSuccessRdy)
}

// OpenReady transitions a READY session to UP once the user opens an
// incoming session that was accepted before the user had opened it.
func (s *LinkSession) OpenReady() error {
	if s.fsm.current != StateReady {
		return ErrNotOpenable
	}
	s.opened = true
	return s.fsm.handleEvent(evOpenReady)
}

func (s *LinkSession) wireUp() {
	s.stopTimer()
	path, hook, err := s.host.UpperHook(s.linkID)
	if err != nil {
		level.Error(s.logger).Log("message", "failed to resolve upper hook", "error", err)
		s.teardownAndNotify(host.ReasonError, err.Error())
		return
	}
	if err := s.parent.channel.Connect(s.sessionHook, path+hook); err != nil {
		level.Error(s.logger).Log("message", "failed to wire upper hook", "error", err)
	}
	s.host.Up(s.linkID)
	level.Info(s.logger).Log("message", "session up", "real_service", s.realService)
}

// HandleFail reacts to a graph FAIL message (CONNECTING/READY only).
func (s *LinkSession) HandleFail() {
	if s.fsm.current != StateConnecting && s.fsm.current != StateReady {
		return
	}
	_ = s.fsm.handleEvent(evFail, host.ReasonConnectFailed, "peer failed to establish session")
}

// HandlePeerClose reacts to a graph CLOSE message (any non-DOWN
// state).
func (s *LinkSession) HandlePeerClose() {
	if s.fsm.current == StateDown {
		return
	}
	_ = s.fsm.handleEvent(evPeerClose, host.ReasonDropped, "peer closed session")
}

// HandleSetMaxPReply reacts to a SETMAXP reply: if the configured
// value was nonzero and the peer echoed it unchanged, mp_reply is set
// true, otherwise this is log-only.
func (s *LinkSession) HandleSetMaxPReply(echoed uint16) {
	if s.fsm.current == StateDown {
		return
	}
	if s.cfg.MaxPayload != 0 && echoed == s.cfg.MaxPayload {
		s.mpReply = true
		return
	}
	level.Debug(s.logger).Log("message", "max-payload not confirmed", "requested", s.cfg.MaxPayload, "echoed", echoed)
}

// HandleSessionID records the peer's PPPoE session id for diagnostics
// only; it never affects state transitions.
func (s *LinkSession) HandleSessionID(id uint32) {
	if s.fsm.current == StateDown {
		return
	}
	s.peerSessionID = id
}

// HandleInfo logs an informational control message (ACNAME, HURL,
// MOTM) without changing state.
func (s *LinkSession) HandleInfo(what string, payload []byte) {
	if s.fsm.current == StateDown {
		return
	}
	level.Debug(s.logger).Log("message", "informational control message", "kind", what, "bytes", len(payload))
}

// EffectiveMRU returns the MTU/MRU value a host should use for this
// link: the negotiated max-payload if the peer confirmed it,
// otherwise def.
func (s *LinkSession) EffectiveMRU(def uint16) uint16 {
	if s.cfg.MaxPayload > 0 && s.mpReply {
		return s.cfg.MaxPayload
	}
	return def
}

func maxPayloadPayload(v uint16) []byte {
	return pppoe.NewMaxPayloadTag(v).Bytes()
}

// HookName builds the per-session graph hook name this module encodes
// an integer link id into, "mpd<pid>-<link_id>".
func HookName(pid, hookID int) string {
	return fmt.Sprintf("mpd%d-%d", pid, hookID)
}
