package host

var _ Host = (*NullHost)(nil)

// NullHost is a no-op Host implementation for unit tests of the
// components above it: every notification is discarded, every query
// returns a permissive default, and option mutators are no-ops. This
// mirrors the nil fake this codebase ships for its AC-route netlink
// collaborator.
type NullHost struct{}

// UpperHook always reports an empty, always-wired upper hook.
func (*NullHost) UpperHook(linkID string) (path, hook string, err error) {
	return "", "", nil
}

// Up discards the notification.
func (*NullHost) Up(linkID string) {}

// Down discards the notification.
func (*NullHost) Down(linkID string, reason DownReason, detail string) {}

// Incoming discards the notification.
func (*NullHost) Incoming(linkID string) {}

// IsBusy always reports false.
func (*NullHost) IsBusy(linkID string) bool { return false }

// Enabled always reports true, so incoming-eligibility checks built on
// it pass by default in tests that don't care about option state.
func (*NullHost) Enabled(linkID string, opt Option) bool { return true }

// Disable is a no-op.
func (*NullHost) Disable(linkID string, opt Option) {}

// Deny is a no-op.
func (*NullHost) Deny(linkID string, opt Option) {}

// Instantiate returns the template ID unchanged, i.e. templates and
// instances are not distinguished by this fake.
func (*NullHost) Instantiate(templateID string) (string, error) {
	return templateID, nil
}

// Shutdown is a no-op.
func (*NullHost) Shutdown(linkID string) {}
