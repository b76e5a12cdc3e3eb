/*
Package pppoe implements the wire format of the PPP over Ethernet
Active Discovery protocol (RFC2516), including the RFC4638 PPP-Max-
Payload tag and the Broadband Forum TR-101 vendor-specific Agent-
Circuit-ID / Agent-Remote-ID sub-tags.

Package pppoe deliberately does not implement the discovery state
machine (PADI/PADO/PADR/PADS exchange) or session management - those
are the responsibility of the link package, which treats the
forwarding-graph PPPoE node as the entity actually running that state
machine. What this package provides is the codec: parsing an untrusted
raw frame into a Frame plus its Tags, and encoding tags and frames back
to wire bytes.

Usage

	import (
		"fmt"
		"github.com/katalix/go-pppoe-link/pppoe"
	)

	// Parse a raw discovery frame received from the wire.
	f, err := pppoe.ParseFrame(raw)
	if err != nil {
		// truncated or not a discovery frame; drop it
	}

	// Extract the requested service name.
	service, _ := f.ServiceName()

	// Extract BBF Agent-Circuit-ID / Agent-Remote-ID, if present.
	circuitID, remoteID := pppoe.AgentIDs(f.Tags)
	fmt.Println(service, string(circuitID), string(remoteID))
*/
package pppoe
