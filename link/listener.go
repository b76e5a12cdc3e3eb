package link

import (
	"fmt"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// listenerEntry is one advertised service name on a ParentIf, shared
// by every LinkSession listening for that service.
type listenerEntry struct {
	service string
	refs    int
}

// ListenerSet is a ParentIf's set of advertised service names. Hook
// lifetime is bounded by entry lifetime: the hook "listen-<service>"
// exists iff the entry exists.
type ListenerSet struct {
	logger  log.Logger
	parent  *ParentIf
	entries map[string]*listenerEntry
}

func newListenerSet(logger log.Logger, parent *ParentIf) *ListenerSet {
	return &ListenerSet{
		logger:  log.With(logger, "node_path", parent.NodePath),
		parent:  parent,
		entries: make(map[string]*listenerEntry),
	}
}

// ListenHookName returns the graph hook name a service is advertised
// on.
func ListenHookName(service string) string {
	return fmt.Sprintf("listen-%s", service)
}

// Subscribe adds a reference to service, creating its listening hook
// on first use.
func (l *ListenerSet) Subscribe(service string) error {
	if e, ok := l.entries[service]; ok {
		e.refs++
		return nil
	}

	if err := l.parent.channel.Listen(service); err != nil {
		return wrapGraphErr("listen", err)
	}

	l.entries[service] = &listenerEntry{service: service, refs: 1}
	level.Info(l.logger).Log("message", "subscribed to service", "service", service)
	return nil
}

// Unsubscribe removes a reference to service, tearing down its
// listening hook once no link references it anymore.
func (l *ListenerSet) Unsubscribe(service string) {
	e, ok := l.entries[service]
	if !ok {
		return
	}
	e.refs--
	if e.refs > 0 {
		return
	}
	if err := l.parent.channel.Unlisten(service); err != nil {
		level.Warn(l.logger).Log("message", "error unlistening service", "service", service, "error", err)
	}
	delete(l.entries, service)
	level.Info(l.logger).Log("message", "unsubscribed from service", "service", service)
}

// releaseAll tears down every listener entry, called when the owning
// ParentIf's reference count reaches zero.
func (l *ListenerSet) releaseAll() {
	for service, e := range l.entries {
		e.refs = 1
		l.Unsubscribe(service)
	}
}

// Has reports whether service currently has an active listener entry.
func (l *ListenerSet) Has(service string) bool {
	_, ok := l.entries[service]
	return ok
}
