// Package graph defines the contract this module needs from the
// OS-level packet-forwarding graph facility that actually speaks the
// PPPoE discovery protocol and owns Ethernet-level sockets: creating
// control/data socket pairs for a parent interface, sending and
// receiving control messages and data frames, and managing the
// ephemeral nodes and hooks a PPPoE session's lifecycle requires.
//
// The link package never talks to sockets, netlink, or any kernel
// facility directly - it is handed a graph.Channel and drives it
// through this interface only, exactly as this codebase's PPPoE-to-
// L2TP bridge depends on its AC-route netlink collaborator only
// through the acNetlink/acNetlinkConn interface pair.
package graph

import "fmt"

// Cmd identifies a PPPoE control message, sent to or received from the
// graph's PPPoE node for a given parent attachment.
type Cmd int

// Control commands exchanged with the PPPoE node.
const (
	CmdConnect   Cmd = iota // originate a session: bind a session hook to a service name
	CmdListen               // advertise a service on a listen-<service> hook
	CmdOffer                // put the node into AC offer mode with an AC-Name payload
	CmdService              // answer an incoming request with a service name
	CmdSetMaxP              // negotiate RFC4638 PPP-Max-Payload
	CmdSuccess              // async: session established
	CmdFail                 // async: session failed to establish
	CmdClose                // async: session torn down by the peer or the node
	CmdSessionID            // async: informational session id
	CmdACName               // async: informational AC name
	CmdHURL                 // async: informational "Host URL" (RFC4937)
	CmdMOTM                 // async: informational "Message Of The Minute" (RFC4937)
)

// String renders a human-readable Cmd.
func (c Cmd) String() string {
	switch c {
	case CmdConnect:
		return "CONNECT"
	case CmdListen:
		return "LISTEN"
	case CmdOffer:
		return "OFFER"
	case CmdService:
		return "SERVICE"
	case CmdSetMaxP:
		return "SETMAXP"
	case CmdSuccess:
		return "SUCCESS"
	case CmdFail:
		return "FAIL"
	case CmdClose:
		return "CLOSE"
	case CmdSessionID:
		return "SESSIONID"
	case CmdACName:
		return "ACNAME"
	case CmdHURL:
		return "HURL"
	case CmdMOTM:
		return "MOTM"
	}
	return fmt.Sprintf("Cmd(%d)", int(c))
}

// Message is a single asynchronous control message arriving on a
// parent's control socket.
type Message struct {
	Hook    string
	Cmd     Cmd
	Payload []byte
}

// Frame is a single data frame arriving on a parent's data socket,
// tagged with the hook it was delivered on (e.g. "listen-isp" for an
// incoming PADI, or a session hook for post-acceptance traffic).
type Frame struct {
	Hook  string
	Bytes []byte
}

// Channel is one parent Ethernet attachment's control and data
// sockets, plus the node-management primitives ParentIfRegistry and
// IncomingDispatcher need. It corresponds to the pair of sockets a
// ParentIf owns once acquired.
type Channel interface {
	// NodeID returns the identifier the graph control layer assigned to
	// the PPPoE node backing this parent attachment (NgGetNodeID).
	NodeID() string

	// Control delivers asynchronous control messages as they arrive.
	// The channel is closed when the Channel is closed.
	Control() <-chan Message

	// Data delivers data frames as they arrive on any hook subscribed
	// via Listen, or on a session hook once one exists. The channel is
	// closed when the Channel is closed.
	Data() <-chan Frame

	// SendMsg sends a control message to the PPPoE node (NgSendMsg).
	SendMsg(cmd Cmd, payload []byte) error

	// SendData sends a raw frame out on the given hook (NgSendData).
	SendData(hook string, frame []byte) error

	// Listen creates a listen-<service> hook and asks the PPPoE node to
	// advertise service on it.
	Listen(service string) error

	// Unlisten removes a previously created listen-<service> hook.
	Unlisten(service string) error

	// Connect asks the PPPoE node to originate a session on hook bound
	// to service (the CONNECT command).
	Connect(hook, service string) error

	// Tee performs the accept-time "replay into the node" sequence: a
	// tee is bridged onto hook temporarily, the supplied frame is
	// replayed through it as if arriving from the wire, and the tee is
	// torn down again once the node has processed it. The graph
	// control layer owns the mechanics of this (tee/socket-node
	// wiring); the link package only needs the outcome.
	Tee(hook string, frame []byte) error

	// Disconnect removes a hook binding (NgFuncDisconnect).
	Disconnect(hook string) error

	// ShutdownNode tears down the PPPoE node and any remaining hooks
	// for this parent attachment (NgFuncShutdownNode).
	// ParentIfRegistry.Release does not call it: at zero refs it only
	// closes the Channel.
	ShutdownNode() error

	// Close releases the control and data sockets. It does not itself
	// shut down the PPPoE node - see ShutdownNode.
	Close() error
}

// Dialer creates Channels for parent Ethernet attachments.
type Dialer interface {
	// Dial brings iface administratively up, creates (or adopts, if one
	// is already attached to parentHook) a PPPoE node for it, and
	// returns a Channel bound to that attachment (NgMkSockNode plus the
	// adopt-or-MKPEER logic of ParentIfRegistry.acquire).
	Dial(iface, parentPath, parentHook string) (Channel, error)
}
