package link

import (
	"os"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/katalix/go-pppoe-link/graph"
	"github.com/katalix/go-pppoe-link/host"
	"github.com/katalix/go-pppoe-link/pppoe"
)

// OverloadFunc reports whether the process is currently too busy to
// accept further incoming sessions.
type OverloadFunc func() bool

// IncomingDispatcher handles PADI/PADR frames arriving on a
// "listen-<service>" hook: it picks a matching, non-busy link
// template or static link, instantiates it if needed, and drives the
// OFFER/SERVICE/replay sequence.
type IncomingDispatcher struct {
	logger   log.Logger
	pid      int
	host     host.Host
	table    *SessionTable
	overload OverloadFunc
}

// NewIncomingDispatcher creates a dispatcher. overload may be nil, in
// which case the process is never considered overloaded.
func NewIncomingDispatcher(logger log.Logger, pid int, h host.Host, table *SessionTable, overload OverloadFunc) *IncomingDispatcher {
	if overload == nil {
		overload = func() bool { return false }
	}
	return &IncomingDispatcher{logger: logger, pid: pid, host: h, table: table, overload: overload}
}

// HandleFrame processes one data frame delivered on parent's listener
// hook for listenerService.
func (d *IncomingDispatcher) HandleFrame(parent *ParentIf, listenerService string, raw []byte) {
	frame, err := pppoe.ParseFrame(raw)
	if err != nil {
		level.Debug(d.logger).Log("message", "dropping truncated or malformed discovery frame", "error", err)
		return
	}
	if frame.Code != pppoe.CodePADI && frame.Code != pppoe.CodePADR {
		return
	}

	realService := listenerService
	if name, ok := frame.ServiceName(); ok {
		realService = name
	}
	agentCID, agentRID := pppoe.AgentIDs(frame.Tags)

	if d.overload() {
		level.Warn(d.logger).Log("message", "dropping incoming request, process overloaded")
		return
	}

	sess := d.findAcceptor(parent, listenerService)
	if sess == nil {
		level.Info(d.logger).Log("message", "no eligible link for incoming request", "service", listenerService, "iface", parent.Iface)
		return
	}

	instantiated := false
	if sess.cfg.Template {
		instanceID, err := d.host.Instantiate(sess.LinkID())
		if err != nil {
			level.Error(d.logger).Log("message", "failed to instantiate link template", "template", sess.LinkID(), "error", err)
			return
		}
		instance := sess.cloneAsInstance(instanceID, d.host)
		d.table.Add(instance)
		sess = instance
		instantiated = true
	}

	sessionHook := HookName(d.pid, sess.HookID())
	acName := sess.cfg.ACName
	if acName == "" {
		if hostname, err := os.Hostname(); err == nil {
			acName = hostname
		} else {
			acName = "NONAME"
		}
	}

	ch := parent.Channel()
	if err := ch.SendMsg(graph.CmdOffer, pppoe.NewStringTag(pppoe.TagTypeACName, acName).Bytes()); err != nil {
		d.abort(sess, instantiated, "offer", err)
		return
	}
	if err := ch.SendMsg(graph.CmdService, pppoe.NewStringTag(pppoe.TagTypeServiceName, listenerService).Bytes()); err != nil {
		d.abort(sess, instantiated, "service", err)
		return
	}
	if err := ch.Tee(sessionHook, raw); err != nil {
		d.abort(sess, instantiated, "tee replay", err)
		return
	}

	sess.acceptIncoming(parent, sessionHook, frame.SrcHWAddr, realService, agentCID, agentRID)
}

// findAcceptor performs a linear scan: the first non-busy,
// same-parent, exact-service-match, incoming-enabled link wins.
func (d *IncomingDispatcher) findAcceptor(parent *ParentIf, service string) *LinkSession {
	for _, sess := range d.table.All() {
		if sess.ParentPath() != parent.NodePath {
			continue
		}
		if sess.Service() != service {
			continue
		}
		if !sess.IncomingEnabled() {
			continue
		}
		if d.host.IsBusy(sess.LinkID()) || sess.State() != StateDown {
			continue
		}
		return sess
	}
	return nil
}

func (d *IncomingDispatcher) abort(sess *LinkSession, instantiated bool, step string, err error) {
	level.Error(d.logger).Log("message", "incoming accept sequence failed", "step", step, "error", err)
	if instantiated {
		d.host.Shutdown(sess.LinkID())
		d.table.Remove(sess.LinkID())
	}
}

// cloneAsInstance creates a runnable LinkSession for a freshly
// instantiated template, carrying the template's configuration under
// the new instance's link id.
func (s *LinkSession) cloneAsInstance(instanceID string, h host.Host) *LinkSession {
	cfg := s.cfg
	cfg.Template = false
	return NewLinkSession(s.logger, instanceID, h, s.parentRegistry, cfg)
}
