package daemonconfig

import (
	"fmt"

	"github.com/katalix/go-pppoe-link/link"
)

// Apply drives a link.ConfigSurface from a parsed LinkConfig entry, the
// way a future CLI 'set' command would drive the same surface.
func Apply(c *link.ConfigSurface, lc LinkConfig) error {
	if err := c.SetIface(lc.Iface, lc.Hook); err != nil {
		return fmt.Errorf("set iface: %w", err)
	}
	if lc.Service != "" {
		if err := c.SetService(lc.Service); err != nil {
			return fmt.Errorf("set service: %w", err)
		}
	}
	if lc.ACName != "" {
		c.SetACName(lc.ACName)
	}
	if lc.MaxPayload != 0 {
		if err := c.SetMaxPayload(lc.MaxPayload); err != nil {
			return fmt.Errorf("set max-payload: %w", err)
		}
	}
	if lc.MACFormat != "" {
		if err := c.SetMACFormat(lc.MACFormat); err != nil {
			return fmt.Errorf("set mac-format: %w", err)
		}
	}
	if lc.Incoming {
		if err := c.EnableListening(); err != nil {
			return fmt.Errorf("enable listening: %w", err)
		}
	}
	return nil
}
