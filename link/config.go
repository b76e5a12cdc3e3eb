package link

import "fmt"

// ConfigSurface applies mutable setters to a LinkSession's
// configuration, re-subscribing listener and parent state as needed.
// It is the shared landing point for both a future interactive "set"
// command and the TOML config loader in daemonconfig.
type ConfigSurface struct {
	session *LinkSession
}

// NewConfigSurface wraps session for configuration.
func NewConfigSurface(session *LinkSession) *ConfigSurface {
	return &ConfigSurface{session: session}
}

// SetIface rewrites the parent interface (and optional parent hook),
// re-acquiring the parent and re-subscribing any active listener.
func (c *ConfigSurface) SetIface(iface, hook string) error {
	s := c.session
	if iface == "" {
		return fmt.Errorf("%w: empty interface name", ErrConfigRejected)
	}
	if hook == "" {
		hook = DefaultParentHook
	}

	wasListening := s.cfg.Incoming && s.parent != nil && s.parent.listeners.Has(s.cfg.Service)
	oldParent := s.parent

	if wasListening {
		oldParent.listeners.Unsubscribe(s.cfg.Service)
	}
	if oldParent != nil {
		s.parentRegistry.Release(oldParent)
		s.parent = nil
	}

	s.cfg.Iface = iface
	s.cfg.ParentHook = hook
	s.parentPath = DerivePath(iface)

	if wasListening {
		p, err := s.parentRegistry.Acquire(iface, s.parentPath, hook)
		if err != nil {
			return err
		}
		if err := p.listeners.Subscribe(s.cfg.Service); err != nil {
			s.parentRegistry.Release(p)
			return err
		}
		s.parent = p
	}
	return nil
}

// SetService updates the requested/advertised service name,
// re-subscribing an active listener under the new name.
func (c *ConfigSurface) SetService(service string) error {
	s := c.session
	if s.parent != nil && s.cfg.Incoming && s.parent.listeners.Has(s.cfg.Service) {
		s.parent.listeners.Unsubscribe(s.cfg.Service)
		if err := s.parent.listeners.Subscribe(service); err != nil {
			return err
		}
	}
	s.cfg.Service = service
	return nil
}

// SetACName stores the AC name advertised when offering an incoming
// session. It has no effect until the next OFFER.
func (c *ConfigSurface) SetACName(name string) {
	c.session.cfg.ACName = name
}

// SetMaxPayload validates and stores the RFC4638 PPP-Max-Payload
// value, rejecting anything outside [PPPoEMRU, EtherMaxLen-8]; 0 is
// also accepted and disables the max-payload request.
func (c *ConfigSurface) SetMaxPayload(n uint16) error {
	if n != 0 && (n < PPPoEMRU || n > EtherMaxLen-8) {
		return fmt.Errorf("%w: max-payload %d out of range [%d, %d]", ErrConfigRejected, n, PPPoEMRU, EtherMaxLen-8)
	}
	c.session.cfg.MaxPayload = n
	return nil
}

// SetMACFormat parses and stores the peer MAC rendering style.
func (c *ConfigSurface) SetMACFormat(name string) error {
	f, err := ParseMACFormat(name)
	if err != nil {
		return err
	}
	c.session.cfg.MACFormat = f
	return nil
}

// EnableListening subscribes this link's service on its parent,
// called once at startup for incoming-eligible links (the listener
// equivalent of "open" for an outgoing link).
func (c *ConfigSurface) EnableListening() error {
	s := c.session
	if !s.cfg.Incoming {
		return fmt.Errorf("%w: link is not configured for incoming sessions", ErrConfigRejected)
	}
	p, err := s.parentRegistry.Acquire(s.cfg.Iface, s.parentPath, s.cfg.ParentHook)
	if err != nil {
		return err
	}
	if err := p.listeners.Subscribe(s.cfg.Service); err != nil {
		s.parentRegistry.Release(p)
		return err
	}
	s.parent = p
	return nil
}
