package graph

import (
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"sync"
	"syscall"

	"github.com/katalix/go-pppoe-link/pppoe"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// RawDialer is the real Dialer, backed by an AF_PACKET discovery
// socket per parent interface. It fills the role this module's
// original FreeBSD ancestor gave to netgraph's ng_ether/ng_pppoe/
// ng_socket nodes: bringing the parent link up and handing back a
// Channel that can send and receive PPPoE frames on it. There is no
// portable forwarding-graph facility on this platform, so the Channel
// it returns (rawChannel) stands in for the PPPoE node itself: it
// keeps the OFFER/SERVICE state and answers teed and returning
// discovery frames on the wire.
type RawDialer struct{}

var _ Dialer = RawDialer{}

// Dial implements Dialer.
func (RawDialer) Dial(iface, parentPath, parentHook string) (Channel, error) {
	link, err := netlink.LinkByName(iface)
	if err != nil {
		return nil, fmt.Errorf("lookup interface %q: %w", iface, err)
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return nil, fmt.Errorf("bring up interface %q: %w", iface, err)
	}

	fd, err := newDiscoverySocket(link.Attrs().Index)
	if err != nil {
		return nil, fmt.Errorf("open discovery socket on %q: %w", iface, err)
	}

	file := os.NewFile(uintptr(fd), "pppoe-discovery")
	rc, err := file.SyscallConn()
	if err != nil {
		unix.Close(fd)
		return nil, err
	}

	netIface, err := net.InterfaceByName(iface)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("lookup net.Interface %q: %w", iface, err)
	}

	c := &rawChannel{
		nodeID:    fmt.Sprintf("%s:%s", parentPath, parentHook),
		iface:     netIface,
		file:      file,
		rc:        rc,
		control:   make(chan Message, 64),
		data:      make(chan Frame, 64),
		done:      make(chan struct{}),
		accepting: make(map[string]*pendingAccept),
		origins:   make(map[string]*pendingOrigin),
		sessions:  make(map[string]*establishedSession),
		byID:      make(map[pppoe.SessionID]string),
		listening: make(map[string]bool),
	}
	go c.readLoop()
	return c, nil
}

func newDiscoverySocket(ifindex int) (fd int, err error) {
	proto := htons(pppoe.EtherTypeDiscovery)

	fd, err = unix.Socket(unix.AF_PACKET, unix.SOCK_RAW|unix.SOCK_CLOEXEC, int(proto))
	if err != nil {
		return -1, fmt.Errorf("socket: %w", err)
	}
	if err = unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("set nonblocking: %w", err)
	}
	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_BROADCAST, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("setsockopt SO_BROADCAST: %w", err)
	}

	sa := &unix.SockaddrLinklayer{
		Protocol: proto,
		Ifindex:  ifindex,
	}
	if err = unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("bind: %w", err)
	}
	return fd, nil
}

func htons(v uint16) uint16 {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return binary.LittleEndian.Uint16(b)
}

// broadcastHWAddr is the destination address for a PADI, which has no
// known concentrator to address yet.
var broadcastHWAddr = [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// pendingAccept tracks an AC-side accept in progress: a PADO has gone
// out for hook and rawChannel is waiting for the matching PADR so it
// can complete the handshake with a PADS, exactly as a netgraph tee
// node would consume the returning discovery packet in-kernel without
// ever surfacing it to the link package.
type pendingAccept struct {
	hook    string
	service string
	peerMAC [6]byte
}

// pendingOrigin tracks a client-side origination in progress: a PADI
// has gone out for hook and rawChannel is waiting for the PADO so it
// can answer with a PADR on the link package's behalf.
type pendingOrigin struct {
	hook    string
	service string
}

// establishedSession records the wire identity of a session that has
// completed discovery, so Disconnect/ShutdownNode can address a real
// PADT to the right peer and a second Connect call for the same hook
// (the upper-layer hook-wiring call wireUp makes) can be recognised
// as a no-op.
type establishedSession struct {
	id      pppoe.SessionID
	peerMAC [6]byte
}

// rawChannel is the real Channel implementation. A single parent
// interface's discovery socket backs both the control plane (PADO/
// PADS/PADT, and the Success/Fail/SessionID events they resolve to)
// and the data plane (PADI/PADR not already claimed by an in-flight
// accept, delivered as Frames on the "listen" hook). Unlike a kernel
// ng_pppoe node, rawChannel has no separate graph node to do this
// work for it, so it plays that role itself: building and writing
// real PADO/PADR/PADS/PADT frames and tracking enough per-hook state
// to answer the peer's side of the handshake.
type rawChannel struct {
	nodeID string
	iface  *net.Interface
	file   *os.File
	rc     syscall.RawConn

	control chan Message
	data    chan Frame

	mu                sync.Mutex
	closed            bool
	done              chan struct{}
	pendingACName     string
	pendingService    string
	pendingMaxPayload uint16
	nextSessionID     pppoe.SessionID
	accepting         map[string]*pendingAccept
	origins           map[string]*pendingOrigin
	sessions          map[string]*establishedSession
	byID              map[pppoe.SessionID]string
	listening         map[string]bool
}

var _ Channel = (*rawChannel)(nil)

func (c *rawChannel) NodeID() string          { return c.nodeID }
func (c *rawChannel) Control() <-chan Message { return c.control }
func (c *rawChannel) Data() <-chan Frame      { return c.data }

func (c *rawChannel) readLoop() {
	defer close(c.control)
	defer close(c.data)

	buf := make([]byte, 1600)
	for {
		n, err := c.file.Read(buf)
		select {
		case <-c.done:
			return
		default:
		}
		if err != nil {
			return
		}
		raw := append([]byte(nil), buf[:n]...)
		frame, perr := pppoe.ParseFrame(raw)
		if perr != nil {
			continue
		}

		switch frame.Code {
		case pppoe.CodePADO:
			c.handlePADO(frame)
		case pppoe.CodePADS:
			c.handlePADS(frame)
		case pppoe.CodePADT:
			c.handlePADT(frame)
		case pppoe.CodePADR:
			if !c.tryCompleteAccept(frame) {
				c.data <- Frame{Hook: "listen", Bytes: raw}
			}
		default:
			c.data <- Frame{Hook: "listen", Bytes: raw}
		}
	}
}

// handlePADO answers an offer for a pending origination with a PADR,
// the client side of the handshake rawChannel drives on the link
// package's behalf once Connect has broadcast a PADI.
func (c *rawChannel) handlePADO(frame *pppoe.Frame) {
	hu, ok := pppoe.FindTag(frame.Tags, pppoe.TagTypeHostUniq)
	if !ok {
		return
	}
	hook := string(hu.Data)

	c.mu.Lock()
	origin, pending := c.origins[hook]
	c.mu.Unlock()
	if !pending {
		return
	}

	tags := []*pppoe.Tag{
		pppoe.NewStringTag(pppoe.TagTypeServiceName, origin.service),
		pppoe.NewTag(pppoe.TagTypeHostUniq, hu.Data),
	}
	if cookie, ok := pppoe.FindTag(frame.Tags, pppoe.TagTypeACCookie); ok {
		tags = append(tags, pppoe.NewTag(pppoe.TagTypeACCookie, cookie.Data))
	}

	padr := &pppoe.Frame{SrcHWAddr: c.HWAddr(), DstHWAddr: frame.SrcHWAddr, Code: pppoe.CodePADR, Tags: tags}
	if _, err := c.file.Write(padr.Bytes()); err != nil {
		c.mu.Lock()
		delete(c.origins, hook)
		c.mu.Unlock()
		c.control <- Message{Hook: hook, Cmd: CmdFail}
	}
}

// handlePADS completes a pending origination: a nonzero session ID
// confirms the session, a zero one (carrying Service-Name-Error)
// fails it.
func (c *rawChannel) handlePADS(frame *pppoe.Frame) {
	hu, ok := pppoe.FindTag(frame.Tags, pppoe.TagTypeHostUniq)
	if !ok {
		return
	}
	hook := string(hu.Data)

	c.mu.Lock()
	_, pending := c.origins[hook]
	if !pending {
		c.mu.Unlock()
		return
	}
	delete(c.origins, hook)
	if frame.SessionID == 0 {
		c.mu.Unlock()
		c.control <- Message{Hook: hook, Cmd: CmdFail}
		return
	}
	c.sessions[hook] = &establishedSession{id: frame.SessionID, peerMAC: frame.SrcHWAddr}
	c.byID[frame.SessionID] = hook
	c.mu.Unlock()

	idPayload := make([]byte, 2)
	binary.BigEndian.PutUint16(idPayload, uint16(frame.SessionID))
	c.control <- Message{Hook: hook, Cmd: CmdSessionID, Payload: idPayload}
	c.control <- Message{Hook: hook, Cmd: CmdSuccess}
}

// handlePADT resolves an unsolicited session teardown from the peer
// back to the hook it belongs to, by session ID.
func (c *rawChannel) handlePADT(frame *pppoe.Frame) {
	c.mu.Lock()
	hook, ok := c.byID[frame.SessionID]
	if ok {
		delete(c.byID, frame.SessionID)
		delete(c.sessions, hook)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	c.control <- Message{Hook: hook, Cmd: CmdClose}
}

// tryCompleteAccept matches an incoming PADR against an AC-side
// accept awaiting one, by peer address and, if present, the PADR's
// own Service-Name. It reports whether the frame was claimed; an
// unmatched PADR is left for the caller to treat as an ordinary data
// frame.
func (c *rawChannel) tryCompleteAccept(padr *pppoe.Frame) bool {
	wantService, _ := padr.ServiceName()

	c.mu.Lock()
	var match *pendingAccept
	for _, pa := range c.accepting {
		if pa.peerMAC != padr.SrcHWAddr {
			continue
		}
		if wantService != "" && pa.service != wantService {
			continue
		}
		match = pa
		break
	}
	c.mu.Unlock()
	if match == nil {
		return false
	}

	if _, err := c.sendPADS(match.hook, match.service, padr); err != nil {
		c.control <- Message{Hook: match.hook, Cmd: CmdFail}
		return true
	}
	c.control <- Message{Hook: match.hook, Cmd: CmdSuccess}
	return true
}

// sendPADS builds and writes a PADS answering padr, assigning a fresh
// session ID and recording the session as established.
func (c *rawChannel) sendPADS(hook, service string, padr *pppoe.Frame) (pppoe.SessionID, error) {
	c.mu.Lock()
	c.nextSessionID++
	id := c.nextSessionID
	c.mu.Unlock()

	tags := []*pppoe.Tag{pppoe.NewStringTag(pppoe.TagTypeServiceName, service)}
	if hu, ok := pppoe.FindTag(padr.Tags, pppoe.TagTypeHostUniq); ok {
		tags = append(tags, pppoe.NewTag(pppoe.TagTypeHostUniq, hu.Data))
	}

	pads := &pppoe.Frame{SrcHWAddr: c.HWAddr(), DstHWAddr: padr.SrcHWAddr, Code: pppoe.CodePADS, SessionID: id, Tags: tags}
	if _, err := c.file.Write(pads.Bytes()); err != nil {
		return 0, err
	}

	c.mu.Lock()
	delete(c.accepting, hook)
	c.sessions[hook] = &establishedSession{id: id, peerMAC: padr.SrcHWAddr}
	c.byID[id] = hook
	c.mu.Unlock()
	return id, nil
}

func (c *rawChannel) SendMsg(cmd Cmd, payload []byte) error {
	tags := pppoe.ParseTags(payload)

	c.mu.Lock()
	defer c.mu.Unlock()
	switch cmd {
	case CmdOffer:
		if t, ok := pppoe.FindTag(tags, pppoe.TagTypeACName); ok {
			c.pendingACName = string(t.Data)
		}
	case CmdService:
		if t, ok := pppoe.FindTag(tags, pppoe.TagTypeServiceName); ok {
			c.pendingService = string(t.Data)
		}
	case CmdSetMaxP:
		if v, ok := pppoe.MaxPayloadValue(tags); ok {
			c.pendingMaxPayload = v
		}
	default:
		return fmt.Errorf("unsupported control command %v", cmd)
	}
	return nil
}

func (c *rawChannel) SendData(hook string, frame []byte) error {
	_, err := c.file.Write(frame)
	return err
}

// Listen records service as advertised. There is no per-service hook
// at the AF_PACKET layer to bind it to - the socket already sees
// every discovery frame on the interface - so this is bookkeeping
// only, kept so Channel's contract is honoured truthfully rather than
// silently ignored.
func (c *rawChannel) Listen(service string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listening[service] = true
	return nil
}

func (c *rawChannel) Unlisten(service string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.listening, service)
	return nil
}

// Connect either originates a new PPPoE session by broadcasting a
// PADI, or - if hook already names an established session - performs
// the second, upper-layer-wiring call session.wireUp makes once the
// session is up, which has no wire effect on this platform.
func (c *rawChannel) Connect(hook, service string) error {
	c.mu.Lock()
	_, established := c.sessions[hook]
	c.mu.Unlock()
	if established {
		return nil
	}
	return c.sendPADI(hook, service)
}

func (c *rawChannel) sendPADI(hook, service string) error {
	c.mu.Lock()
	maxPayload := c.pendingMaxPayload
	c.pendingMaxPayload = 0
	c.mu.Unlock()

	tags := []*pppoe.Tag{
		pppoe.NewStringTag(pppoe.TagTypeServiceName, service),
		pppoe.NewTag(pppoe.TagTypeHostUniq, []byte(hook)),
	}
	if maxPayload > 0 {
		tags = append(tags, pppoe.NewMaxPayloadTag(maxPayload))
	}

	c.mu.Lock()
	c.origins[hook] = &pendingOrigin{hook: hook, service: service}
	c.mu.Unlock()

	padi := &pppoe.Frame{SrcHWAddr: c.HWAddr(), DstHWAddr: broadcastHWAddr, Code: pppoe.CodePADI, Tags: tags}
	_, err := c.file.Write(padi.Bytes())
	return err
}

// Tee performs the accept-time replay this module's original
// FreeBSD ancestor handed to a netgraph tee node: it answers a teed
// PADI with a real PADO, recording the pending accept so a PADR
// arriving later on the same socket completes the handshake without
// ever reaching IncomingDispatcher (see tryCompleteAccept). A PADR
// passed directly - the path netgraph's tee node would normally have
// already consumed - is answered the same way Tee's caller expects:
// with an immediate PADS.
func (c *rawChannel) Tee(hook string, frame []byte) error {
	parsed, err := pppoe.ParseFrame(frame)
	if err != nil {
		return fmt.Errorf("tee: %w", err)
	}

	c.mu.Lock()
	acName := c.pendingACName
	service := c.pendingService
	c.mu.Unlock()

	switch parsed.Code {
	case pppoe.CodePADI:
		tags := []*pppoe.Tag{
			pppoe.NewStringTag(pppoe.TagTypeServiceName, service),
			pppoe.NewStringTag(pppoe.TagTypeACName, acName),
		}
		if hu, ok := pppoe.FindTag(parsed.Tags, pppoe.TagTypeHostUniq); ok {
			tags = append(tags, pppoe.NewTag(pppoe.TagTypeHostUniq, hu.Data))
		}
		if rs, ok := pppoe.FindTag(parsed.Tags, pppoe.TagTypeRelaySessionID); ok {
			tags = append(tags, pppoe.NewTag(pppoe.TagTypeRelaySessionID, rs.Data))
		}

		pado := &pppoe.Frame{SrcHWAddr: c.HWAddr(), DstHWAddr: parsed.SrcHWAddr, Code: pppoe.CodePADO, Tags: tags}
		c.mu.Lock()
		c.accepting[hook] = &pendingAccept{hook: hook, service: service, peerMAC: parsed.SrcHWAddr}
		c.mu.Unlock()
		_, err := c.file.Write(pado.Bytes())
		return err

	case pppoe.CodePADR:
		if _, err := c.sendPADS(hook, service, parsed); err != nil {
			return err
		}
		c.control <- Message{Hook: hook, Cmd: CmdSuccess}
		return nil
	}
	return fmt.Errorf("tee: unexpected discovery code %v", parsed.Code)
}

// Disconnect tears down hook's session, addressing a real PADT to
// its peer if the session had completed discovery, and clears any
// in-flight accept/origin state for it otherwise.
func (c *rawChannel) Disconnect(hook string) error {
	c.mu.Lock()
	sess, ok := c.sessions[hook]
	if ok {
		delete(c.sessions, hook)
		delete(c.byID, sess.id)
	}
	delete(c.accepting, hook)
	delete(c.origins, hook)
	c.mu.Unlock()
	if !ok {
		return nil
	}

	padt := &pppoe.Frame{SrcHWAddr: c.HWAddr(), DstHWAddr: sess.peerMAC, Code: pppoe.CodePADT, SessionID: sess.id}
	_, err := c.file.Write(padt.Bytes())
	return err
}

// ShutdownNode tears down every session this channel still has
// established, addressing a PADT to each peer, and clears all other
// per-hook bookkeeping.
func (c *rawChannel) ShutdownNode() error {
	c.mu.Lock()
	remaining := make([]*establishedSession, 0, len(c.sessions))
	for _, s := range c.sessions {
		remaining = append(remaining, s)
	}
	c.sessions = make(map[string]*establishedSession)
	c.byID = make(map[pppoe.SessionID]string)
	c.accepting = make(map[string]*pendingAccept)
	c.origins = make(map[string]*pendingOrigin)
	c.listening = make(map[string]bool)
	c.mu.Unlock()

	var firstErr error
	for _, s := range remaining {
		padt := &pppoe.Frame{SrcHWAddr: c.HWAddr(), DstHWAddr: s.peerMAC, Code: pppoe.CodePADT, SessionID: s.id}
		if _, err := c.file.Write(padt.Bytes()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *rawChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	return c.file.Close()
}

// HWAddr returns the parent interface's hardware address, used to
// stamp outgoing discovery frames.
func (c *rawChannel) HWAddr() [6]byte {
	var addr [6]byte
	if len(c.iface.HardwareAddr) >= 6 {
		copy(addr[:], c.iface.HardwareAddr[:6])
	}
	return addr
}
