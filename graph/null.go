package graph

var _ Channel = (*NullChannel)(nil)
var _ Dialer = (*NullDialer)(nil)

// NullChannel is a no-op Channel for unit tests of the components
// above it: sends are discarded and acknowledged, the control and
// data channels are open but deliver nothing unless a test injects
// into them directly via InjectControl/InjectData, or Tee echoes a
// frame back on the data channel.
type NullChannel struct {
	id      string
	control chan Message
	data    chan Frame
	closed  bool
}

// NewNullChannel creates a NullChannel identified by id, with buffered
// control and data channels a test can push into directly.
func NewNullChannel(id string) *NullChannel {
	return &NullChannel{
		id:      id,
		control: make(chan Message, 16),
		data:    make(chan Frame, 16),
	}
}

// NodeID implements Channel.
func (c *NullChannel) NodeID() string { return c.id }

// Control implements Channel.
func (c *NullChannel) Control() <-chan Message { return c.control }

// Data implements Channel.
func (c *NullChannel) Data() <-chan Frame { return c.data }

// SendMsg implements Channel as a no-op.
func (c *NullChannel) SendMsg(cmd Cmd, payload []byte) error { return nil }

// SendData implements Channel as a no-op.
func (c *NullChannel) SendData(hook string, frame []byte) error { return nil }

// Listen implements Channel as a no-op.
func (c *NullChannel) Listen(service string) error { return nil }

// Unlisten implements Channel as a no-op.
func (c *NullChannel) Unlisten(service string) error { return nil }

// Connect implements Channel as a no-op.
func (c *NullChannel) Connect(hook, service string) error { return nil }

// Tee implements Channel by immediately delivering frame back on the
// Data channel as though the node had replayed it, which is enough
// for tests that only care that acceptance was attempted.
func (c *NullChannel) Tee(hook string, frame []byte) error {
	select {
	case c.data <- Frame{Hook: hook, Bytes: frame}:
	default:
	}
	return nil
}

// Disconnect implements Channel as a no-op.
func (c *NullChannel) Disconnect(hook string) error { return nil }

// ShutdownNode implements Channel as a no-op.
func (c *NullChannel) ShutdownNode() error { return nil }

// Close implements Channel by closing the control and data channels.
func (c *NullChannel) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.control)
	close(c.data)
	return nil
}

// InjectControl delivers msg on the control channel, for tests driving
// LinkSession/CtrlDemux reactions.
func (c *NullChannel) InjectControl(msg Message) {
	c.control <- msg
}

// InjectData delivers f on the data channel, for tests driving
// IncomingDispatcher.
func (c *NullChannel) InjectData(f Frame) {
	c.data <- f
}

// NullDialer is a Dialer that always succeeds and hands back a fresh
// NullChannel, for tests of ParentIfRegistry that don't want a real
// socket or netlink dependency.
type NullDialer struct{}

// Dial implements Dialer.
func (NullDialer) Dial(iface, parentPath, parentHook string) (Channel, error) {
	return NewNullChannel(iface), nil
}
