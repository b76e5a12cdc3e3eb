package link

import (
	"encoding/binary"
	"regexp"
	"strconv"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/katalix/go-pppoe-link/graph"
)

// hookNamePattern matches the per-session hook name this module
// encodes a link id into: "mpd<pid>-<link_id>", where link_id is the
// integer hook id HookName builds from (see LinkSession.HookID), not
// the link's configured name. Hooks not matching this pattern -
// notably "listen-<service>", or anything with a non-numeric link id
// segment - are not this demultiplexer's concern: the former belongs
// to IncomingDispatcher, and the latter can only be a malformed or
// foreign hook name that must never be confused with a live session.
var hookNamePattern = regexp.MustCompile(`^mpd(\d+)-(\d+)$`)

// CtrlDemux routes asynchronous graph control messages for one parent
// interface back to the LinkSession named by the message's hook.
type CtrlDemux struct {
	logger  log.Logger
	pid     int
	parent  *ParentIf
	table   *SessionTable
}

// NewCtrlDemux creates a demultiplexer for parent's control socket.
// pid is this process's id, used to validate the "mpd<pid>-" prefix
// of incoming hook names.
func NewCtrlDemux(logger log.Logger, pid int, parent *ParentIf, table *SessionTable) *CtrlDemux {
	return &CtrlDemux{
		logger: log.With(logger, "node_path", parent.NodePath),
		pid:    pid,
		parent: parent,
		table:  table,
	}
}

// Handle processes one control message received on the parent's
// control socket. It never returns an error to the caller: malformed
// hook names, unknown link ids, foreign-parent links and messages for
// DOWN links are all dropped with a leveled log line.
func (d *CtrlDemux) Handle(msg graph.Message) {
	if len(msg.Hook) >= len("listen-") && msg.Hook[:len("listen-")] == "listen-" {
		// AC-side events on a listener hook belong to
		// IncomingDispatcher's data-path handling, not here.
		return
	}

	m := hookNamePattern.FindStringSubmatch(msg.Hook)
	if m == nil {
		level.Debug(d.logger).Log("message", "dropping control message with unrecognised hook", "hook", msg.Hook)
		return
	}

	gotPid, err := strconv.Atoi(m[1])
	if err != nil || gotPid != d.pid {
		level.Debug(d.logger).Log("message", "dropping control message for foreign process", "hook", msg.Hook)
		return
	}
	hookID, err := strconv.Atoi(m[2])
	if err != nil {
		level.Debug(d.logger).Log("message", "dropping control message with malformed link id", "hook", msg.Hook)
		return
	}

	sess, ok := d.table.GetByHookID(hookID)
	if !ok {
		level.Debug(d.logger).Log("message", "dropping control message for unknown link", "hook_id", hookID)
		return
	}
	if sess.Parent() != d.parent {
		level.Debug(d.logger).Log("message", "dropping control message for link on a different parent", "hook_id", hookID)
		return
	}
	if sess.State() == StateDown {
		level.Debug(d.logger).Log("message", "dropping control message for down link", "hook_id", hookID)
		return
	}

	switch msg.Cmd {
	case graph.CmdSuccess:
		sess.HandleSuccess()
	case graph.CmdFail:
		sess.HandleFail()
	case graph.CmdClose:
		sess.HandlePeerClose()
	case graph.CmdSetMaxP:
		sess.HandleSetMaxPReply(decodeMaxPayload(msg.Payload))
	case graph.CmdSessionID:
		sess.HandleSessionID(decodeSessionID(msg.Payload))
	case graph.CmdACName, graph.CmdHURL, graph.CmdMOTM:
		sess.HandleInfo(msg.Cmd.String(), msg.Payload)
	default:
		level.Debug(d.logger).Log("message", "ignoring unrecognised control command", "cmd", msg.Cmd, "hook_id", hookID)
	}
}

func decodeMaxPayload(payload []byte) uint16 {
	if len(payload) < 2 {
		return 0
	}
	return binary.BigEndian.Uint16(payload)
}

func decodeSessionID(payload []byte) uint32 {
	switch len(payload) {
	case 2:
		return uint32(binary.BigEndian.Uint16(payload))
	case 4:
		return binary.BigEndian.Uint32(payload)
	}
	return 0
}
