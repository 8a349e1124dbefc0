package moderation

// Verdict is the gate's decision kind.
type Verdict int

const (
	// Continue lets the message through to reply resolution.
	Continue Verdict = iota
	// SendWarning replaces any reply with the warning text.
	SendWarning
)

func (v Verdict) String() string {
	if v == SendWarning {
		return "send_warning"
	}
	return "continue"
}

// Action is the gate's result for one message.
type Action struct {
	Verdict     Verdict
	Warning     string
	Term        string
	NotifyAdmin bool
}

// Checker is the part of Store the gate needs.
type Checker interface {
	Evaluate(rawText string) (Finding, bool)
}

// Gate applies the moderation policy to group conversations only.
type Gate struct {
	checker Checker
}

// NewGate wraps a Checker, usually a *Store.
func NewGate(checker Checker) *Gate {
	return &Gate{checker: checker}
}

// Handle returns SendWarning when isGroup is set and the text contains a
// forbidden entry; one-to-one conversations are never moderated.
func (g *Gate) Handle(rawText string, isGroup bool) Action {
	if !isGroup || g.checker == nil {
		return Action{Verdict: Continue}
	}
	found, ok := g.checker.Evaluate(rawText)
	if !ok {
		return Action{Verdict: Continue}
	}
	return Action{
		Verdict:     SendWarning,
		Warning:     found.Warning,
		Term:        found.Term,
		NotifyAdmin: found.NotifyAdmin,
	}
}
