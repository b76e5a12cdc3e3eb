package host

import (
	"fmt"
	"sync/atomic"
)

// LinkEntry describes one configured link as the host sees it: its
// upper-hook identity, its options, and whether it is a template that
// spawns instances on demand or a concrete, possibly static, link.
type LinkEntry struct {
	ID           string
	UpperPath    string
	UpperHook    string
	Options      Option
	Template     bool
	StaticInstance bool
}

var _ Host = (*Registry)(nil)

// Registry is a process-local reference implementation of Host,
// adequate for standalone daemon operation and for integration tests
// that want real busy/enabled/instantiate semantics rather than the
// permissive NullHost fake.
//
// Mutating methods are only ever called from the single event-loop
// goroutine that owns the rest of this subsystem, so Registry carries
// no internal locking of its own.
type Registry struct {
	links    map[string]*LinkEntry
	busy     map[string]bool
	nextInst uint64
}

// NewRegistry creates an empty link registry.
func NewRegistry() *Registry {
	return &Registry{
		links: make(map[string]*LinkEntry),
		busy:  make(map[string]bool),
	}
}

// Add registers a link entry, statically configured at startup.
func (r *Registry) Add(entry LinkEntry) {
	e := entry
	r.links[e.ID] = &e
}

// UpperHook implements Host.
func (r *Registry) UpperHook(linkID string) (path, hook string, err error) {
	e, ok := r.links[linkID]
	if !ok {
		return "", "", fmt.Errorf("no such link %q", linkID)
	}
	return e.UpperPath, e.UpperHook, nil
}

// Up implements Host.
func (r *Registry) Up(linkID string) {
	r.busy[linkID] = true
}

// Down implements Host.
func (r *Registry) Down(linkID string, reason DownReason, detail string) {
	delete(r.busy, linkID)
}

// Incoming implements Host.
func (r *Registry) Incoming(linkID string) {
	r.busy[linkID] = true
}

// IsBusy implements Host.
func (r *Registry) IsBusy(linkID string) bool {
	return r.busy[linkID]
}

// Enabled implements Host.
func (r *Registry) Enabled(linkID string, opt Option) bool {
	e, ok := r.links[linkID]
	if !ok {
		return false
	}
	return e.Options&opt != 0
}

// Disable implements Host.
func (r *Registry) Disable(linkID string, opt Option) {
	if e, ok := r.links[linkID]; ok {
		e.Options &^= opt
	}
}

// Deny implements Host.
func (r *Registry) Deny(linkID string, opt Option) {
	r.Disable(linkID, opt)
}

// Instantiate implements Host: it clones the named template's entry
// under a freshly generated instance ID and marks the clone as a
// non-static, non-template instance so a later Shutdown call will
// remove it.
func (r *Registry) Instantiate(templateID string) (string, error) {
	tmpl, ok := r.links[templateID]
	if !ok {
		return "", fmt.Errorf("no such link template %q", templateID)
	}
	if !tmpl.Template {
		return "", fmt.Errorf("link %q is not a template", templateID)
	}

	id := atomic.AddUint64(&r.nextInst, 1)
	instanceID := fmt.Sprintf("%s#%d", templateID, id)

	r.links[instanceID] = &LinkEntry{
		ID:        instanceID,
		UpperPath: tmpl.UpperPath,
		UpperHook: tmpl.UpperHook,
		Options:   tmpl.Options,
		Template:  false,
	}
	return instanceID, nil
}

// Shutdown implements Host: it removes a non-static link instance
// previously created by Instantiate. Statically configured links and
// templates are left alone.
func (r *Registry) Shutdown(linkID string) {
	e, ok := r.links[linkID]
	if !ok || e.Template || e.StaticInstance {
		return
	}
	delete(r.links, linkID)
	delete(r.busy, linkID)
}

// Get returns a copy of the link entry for linkID, and whether it is
// registered.
func (r *Registry) Get(linkID string) (LinkEntry, bool) {
	e, ok := r.links[linkID]
	if !ok {
		return LinkEntry{}, false
	}
	return *e, true
}

// All returns every currently registered link entry, templates and
// instances alike.
func (r *Registry) All() []LinkEntry {
	out := make([]LinkEntry, 0, len(r.links))
	for _, e := range r.links {
		out = append(out, *e)
	}
	return out
}
