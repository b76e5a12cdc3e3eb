package link

// SessionTable is the set of all configured LinkSessions, shared by
// CtrlDemux (resolve a hook name to a session, by its integer hook
// id) and IncomingDispatcher (linear scan for an eligible acceptor,
// and lookups by configured link name).
type SessionTable struct {
	sessions map[string]*LinkSession
	byHookID map[int]*LinkSession
}

// NewSessionTable creates an empty table.
func NewSessionTable() *SessionTable {
	return &SessionTable{
		sessions: make(map[string]*LinkSession),
		byHookID: make(map[int]*LinkSession),
	}
}

// Add registers a session under its link id and its hook id.
func (t *SessionTable) Add(s *LinkSession) {
	t.sessions[s.LinkID()] = s
	t.byHookID[s.HookID()] = s
}

// Remove drops a session, e.g. once a template-spawned instance is
// shut down.
func (t *SessionTable) Remove(linkID string) {
	if s, ok := t.sessions[linkID]; ok {
		delete(t.byHookID, s.HookID())
	}
	delete(t.sessions, linkID)
}

// Get looks up a session by link id.
func (t *SessionTable) Get(linkID string) (*LinkSession, bool) {
	s, ok := t.sessions[linkID]
	return s, ok
}

// GetByHookID looks up a session by the integer link id its hook
// names are built from.
func (t *SessionTable) GetByHookID(hookID int) (*LinkSession, bool) {
	s, ok := t.byHookID[hookID]
	return s, ok
}

// All returns every registered session, in no particular order.
func (t *SessionTable) All() []*LinkSession {
	out := make([]*LinkSession, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s)
	}
	return out
}
