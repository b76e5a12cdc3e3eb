package link

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/katalix/go-pppoe-link/graph"
)

// DerivePath turns an Ethernet interface name into the graph path
// convention used to key a ParentIf: '.' and ':' are replaced with
// '_' and a trailing ':' is appended.
func DerivePath(iface string) string {
	r := strings.NewReplacer(".", "_", ":", "_")
	return r.Replace(iface) + ":"
}

// ParentIf is one active parent Ethernet attachment, shared by every
// LinkSession whose iface resolves to the same node path.
type ParentIf struct {
	Iface     string
	NodePath  string
	NodeHook  string
	channel   graph.Channel
	refs      int
	listeners *ListenerSet
}

// etherNodeProbeOnce guards the one-time, process-wide check that the
// Ethernet node type backing PPPoE discovery sockets is available. On
// this platform the probe has nothing to load; it exists so the
// one-attempt-per-process contract is honoured even though the
// underlying facility differs.
var etherNodeProbeOnce sync.Once

func probeEtherNodeType(logger log.Logger) {
	etherNodeProbeOnce.Do(func() {
		level.Debug(logger).Log("message", "ethernet node type probe", "result", "ok")
	})
}

// ParentIfRegistry is the fixed-size, ref-counted table of active
// parent Ethernet attachments.
type ParentIfRegistry struct {
	logger  log.Logger
	dialer  graph.Dialer
	entries map[string]*ParentIf
	maxSize int
}

// NewParentIfRegistry creates an empty registry bounded at maxSize
// entries (use MaxParents unless a test wants a small-capacity
// profile).
func NewParentIfRegistry(logger log.Logger, dialer graph.Dialer, maxSize int) *ParentIfRegistry {
	if maxSize <= 0 {
		maxSize = MaxParents
	}
	return &ParentIfRegistry{
		logger:  logger,
		dialer:  dialer,
		entries: make(map[string]*ParentIf),
		maxSize: maxSize,
	}
}

// Acquire returns the ParentIf for nodePath, creating and dialing it
// if this is the first reference. hook is the Ethernet node hook the
// PPPoE node attaches to (DefaultParentHook unless overridden).
func (r *ParentIfRegistry) Acquire(iface, nodePath, hook string) (*ParentIf, error) {
	if p, ok := r.entries[nodePath]; ok {
		p.refs++
		level.Debug(r.logger).Log("message", "acquire parent", "node_path", nodePath, "refs", p.refs)
		return p, nil
	}

	if len(r.entries) >= r.maxSize {
		level.Warn(r.logger).Log("message", "parent registry full", "max_parents", r.maxSize)
		return nil, ErrNoSlot
	}

	probeEtherNodeType(r.logger)

	ch, err := r.dialer.Dial(iface, nodePath, hook)
	if err != nil {
		return nil, wrapGraphErr("dial parent", err)
	}

	p := &ParentIf{
		Iface:    iface,
		NodePath: nodePath,
		NodeHook: hook,
		channel:  ch,
		refs:     1,
	}
	p.listeners = newListenerSet(r.logger, p)
	r.entries[nodePath] = p

	level.Info(r.logger).Log("message", "new parent interface", "iface", iface, "node_path", nodePath, "node_id", ch.NodeID())
	return p, nil
}

// Release decrements p's reference count, tearing it down once it
// reaches zero. Releasing implicitly drops all of p's listeners.
func (r *ParentIfRegistry) Release(p *ParentIf) {
	if p == nil {
		return
	}
	p.refs--
	if p.refs > 0 {
		level.Debug(r.logger).Log("message", "release parent", "node_path", p.NodePath, "refs", p.refs)
		return
	}
	p.listeners.releaseAll()
	if err := p.channel.Close(); err != nil {
		level.Warn(r.logger).Log("message", "error closing parent channel", "node_path", p.NodePath, "error", err)
	}
	delete(r.entries, p.NodePath)
	level.Info(r.logger).Log("message", "parent interface released", "node_path", p.NodePath)
}

// Channel returns p's graph channel, for CtrlDemux/IncomingDispatcher
// wiring.
func (p *ParentIf) Channel() graph.Channel { return p.channel }

// Refs reports the current reference count, chiefly for tests.
func (p *ParentIf) Refs() int { return p.refs }

// Listening reports whether service currently has an active listener
// subscription on this parent.
func (p *ParentIf) Listening(service string) bool { return p.listeners.Has(service) }

// String identifies a ParentIf for logging.
func (p *ParentIf) String() string {
	return fmt.Sprintf("%s(%s)", p.Iface, p.NodePath)
}
