// Package host defines the contract a PPPoE link subsystem needs from
// the daemon's generic link framework: the place each link's PPP engine
// is already wired to, notifications of link state changes, and the
// template/instance lifecycle for incoming-only link configurations.
//
// This subsystem never owns the link framework itself - it is handed a
// Host and talks to it through this interface only, the same way this
// codebase's PPPoE-to-L2TP bridge depends on an external AC-route
// netlink collaborator through a narrow interface rather than reaching
// into kernel state directly.
package host

import "fmt"

// DownReason classifies why a link transitioned away from UP or
// CONNECTING, for reporting to the host.
type DownReason int

// Reasons a link may go down, mirroring the STR_ERROR / STR_CON_FAILED0
// / STR_MANUALLY / STR_DROPPED vocabulary of the system this subsystem
// is part of.
const (
	ReasonError DownReason = iota
	ReasonConnectFailed
	ReasonManual
	ReasonDropped
)

// String renders a human-readable DownReason.
func (r DownReason) String() string {
	switch r {
	case ReasonError:
		return "error"
	case ReasonConnectFailed:
		return "connection failed"
	case ReasonManual:
		return "manually closed"
	case ReasonDropped:
		return "dropped by peer"
	}
	return fmt.Sprintf("DownReason(%d)", int(r))
}

// Option is a bitmask of link-level configuration options the host
// exposes to the PPPoE subsystem.
type Option uint32

const (
	// OptionIncoming marks a link as eligible to accept an incoming
	// PPPoE session (LINK_CONF_INCOMING).
	OptionIncoming Option = 1 << iota
	// OptionACFComp controls whether Address-and-Control-Field
	// Compression is offered at the PPP layer (LINK_CONF_ACFCOMP).
	// open() [outgoing] always disables and denies this option per the
	// PPPoE RFC2516 requirement that ACFC never be negotiated over a
	// PPPoE link.
	OptionACFComp
)

// Host is the contract the PPPoE link subsystem requires of the
// daemon's generic link framework.
type Host interface {
	// UpperHook returns the graph path and hook name of the PPP
	// engine's per-link upper hook for linkID, i.e. where the PPPoE
	// session hook should ultimately be wired (PhysGetUpperHook).
	UpperHook(linkID string) (path, hook string, err error)

	// Up notifies the host that linkID's session is fully established
	// and its upper hook has been wired (PhysUp).
	Up(linkID string)

	// Down notifies the host that linkID's session has ended or failed
	// to establish, with the reason and a free-text detail for logging
	// (PhysDown).
	Down(linkID string, reason DownReason, detail string)

	// Incoming notifies the host that linkID has accepted an incoming
	// session and is now CONNECTING (PhysIncoming).
	Incoming(linkID string)

	// IsBusy reports whether linkID already has a session in progress
	// and should not be considered for a further incoming request
	// (PhysIsBusy).
	IsBusy(linkID string) bool

	// Enabled reports whether opt is enabled for linkID.
	Enabled(linkID string, opt Option) bool

	// Disable clears opt for linkID.
	Disable(linkID string, opt Option)

	// Deny clears opt for linkID and prevents it being renegotiated
	// (used for ACFC, which PPPoE links must refuse outright).
	Deny(linkID string, opt Option)

	// Instantiate materializes a runnable instance of the link template
	// named templateID, returning the new instance's link ID
	// (LinkInst). It is called by the incoming dispatcher each time a
	// template link accepts a session.
	Instantiate(templateID string) (instanceID string, err error)

	// Shutdown tears down a non-static link instance previously created
	// by Instantiate (LinkShutdown). It is a no-op for statically
	// configured links.
	Shutdown(linkID string)
}
