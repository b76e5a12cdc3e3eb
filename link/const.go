// Package link implements the PPPoE link-layer subsystem: per-link
// session state machines, the parent-interface and listener
// registries that de-duplicate graph resources across links sharing
// an Ethernet interface, the control-message demultiplexer, and the
// incoming-request dispatcher. It depends on the daemon's link
// framework and the packet-forwarding graph only through the host and
// graph packages' interfaces.
package link

import "time"

// MaxParents bounds the number of distinct parent Ethernet interfaces
// a single daemon process will track at once (PPPOE_MAXPARENTIFS in
// the small-system profile; the full default is much larger but a
// fixed, explicit ceiling is kept here for the same reason the source
// keeps one).
const MaxParents = 32

// PPPoEMRU is the minimum legal RFC4638 PPP-Max-Payload value.
const PPPoEMRU = 1492

// EtherMaxLen is the largest Ethernet frame this subsystem will build
// or accept, used as the upper bound for max-payload validation
// (max_payload <= EtherMaxLen - 8).
const EtherMaxLen = 1518

// ConnectTimeout is the one-shot timer started when a session enters
// CONNECTING; if no SUCCESS/FAIL/CLOSE arrives first, the session is
// treated as failed.
const ConnectTimeout = 9 * time.Second

// DefaultParentHook is the Ethernet node hook a PPPoE node attaches to
// when none is given explicitly.
const DefaultParentHook = "orphans"

// State is a LinkSession's position in the PPPoE session lifecycle.
type State int

// Session states, in lifecycle order.
const (
	StateDown State = iota
	StateConnecting
	StateReady
	StateUp
)

// String renders a human-readable State.
func (s State) String() string {
	switch s {
	case StateDown:
		return "down"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateUp:
		return "up"
	}
	return "unknown"
}

// Direction records whether a session was originated locally or
// accepted from a peer.
type Direction int

// Session directions.
const (
	DirectionOutgoing Direction = iota
	DirectionIncoming
)

// String renders a human-readable Direction.
func (d Direction) String() string {
	if d == DirectionIncoming {
		return "incoming"
	}
	return "outgoing"
}

// MACFormat selects how a peer hardware address is rendered for
// calling/called-number reporting.
type MACFormat int

// Supported MAC rendering styles.
const (
	MACFormatUnformatted MACFormat = iota
	MACFormatUnixLike
	MACFormatCiscoLike
	MACFormatIETF
)
