package registry

import "sync"

// ConfirmationAction describes one dangerous call awaiting approval.
type ConfirmationAction struct {
	Tool        string
	Args        []byte
	Description string
}

// ConfirmationRequest bundles every dangerous call from a single Agent Loop
// iteration — one request always covers all of them (I3).
type ConfirmationRequest struct {
	Actions []ConfirmationAction
}

// ConfirmationResultType is the shape of a broker decision.
type ConfirmationResultType int

const (
	// ConfirmApproveAll runs every action in the request.
	ConfirmApproveAll ConfirmationResultType = iota
	// ConfirmDenyAll runs none of them.
	ConfirmDenyAll
	// ConfirmPartial runs only the action at SelectedIndex.
	ConfirmPartial
)

// ConfirmationResult is the broker's decision for a ConfirmationRequest.
type ConfirmationResult struct {
	Type          ConfirmationResultType
	SelectedIndex int
}

// ConfirmHandler is installed by the CLI host to ask the user for approval.
type ConfirmHandler func(ConfirmationRequest) ConfirmationResult

// Broker is the process-wide confirmation injection point (C10). ApproveAll
// and DenyAll are session-wide toggles that short-circuit the handler
// entirely — set by `--allow-all`/`-y` or an explicit user choice to stop
// being asked.
type Broker struct {
	mu         sync.Mutex
	handler    ConfirmHandler
	approveAll bool
	denyAll    bool
}

// NewBroker creates a Broker with no handler installed.
func NewBroker() *Broker {
	return &Broker{}
}

// SetHandler installs the confirmation UI callback.
func (b *Broker) SetHandler(h ConfirmHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = h
}

// SetApproveAll toggles session-wide auto-approval.
func (b *Broker) SetApproveAll(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.approveAll = v
}

// SetDenyAll toggles session-wide auto-denial.
func (b *Broker) SetDenyAll(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.denyAll = v
}

// Confirm resolves a ConfirmationRequest: the session toggles are checked
// first, then the installed handler, and a request with no handler and no
// toggle set is denied (fail safe).
func (b *Broker) Confirm(req ConfirmationRequest) ConfirmationResult {
	b.mu.Lock()
	approveAll, denyAll, handler := b.approveAll, b.denyAll, b.handler
	b.mu.Unlock()

	if approveAll {
		return ConfirmationResult{Type: ConfirmApproveAll}
	}
	if denyAll {
		return ConfirmationResult{Type: ConfirmDenyAll}
	}
	if handler == nil {
		return ConfirmationResult{Type: ConfirmDenyAll}
	}
	return handler(req)
}
