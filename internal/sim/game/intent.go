package game

type IntentKind string

const (
	IntentAbility IntentKind = "ability"
	IntentAdvance IntentKind = "advance"
	IntentChoice  IntentKind = "choice"
	IntentUndo    IntentKind = "undo"
)

// Intent is one player command as recorded in the replay log. Digest is the state digest
// after the command ran.
type Intent struct {
	Seq   int        `json:"seq"`
	Round int        `json:"round"`
	Kind  IntentKind `json:"kind"`

	Ability string   `json:"ability,omitempty"`
	Source  string   `json:"source,omitempty"`
	Targets []string `json:"targets,omitempty"`
	Chain   string   `json:"chain,omitempty"`
	Choice  string   `json:"choice,omitempty"`

	OK     bool   `json:"ok"`
	Digest string `json:"digest"`
}

type IntentLogger interface {
	WriteIntent(Intent) error
}

// IntentSeq is the sequence number of the last recorded intent.
func (m *Manager) IntentSeq() int { return m.seq }

// SetIntentSeq continues numbering after a restored snapshot.
func (m *Manager) SetIntentSeq(seq int) { m.seq = seq }

// MultiIntentLogger fans intents out to several sinks; the first error is returned.
type MultiIntentLogger []IntentLogger

func (ml MultiIntentLogger) WriteIntent(in Intent) error {
	var first error
	for _, l := range ml {
		if l == nil {
			continue
		}
		if err := l.WriteIntent(in); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m *Manager) record(in Intent) {
	if m.intents == nil {
		return
	}
	m.seq++
	in.Seq = m.seq
	in.Round = m.st.Round
	in.Digest = m.Digest()
	if err := m.intents.WriteIntent(in); err != nil {
		m.logger.Printf("intent log: %v", err)
	}
}

// Replay re-executes a recorded intent. It returns the resulting digest and whether the
// command was accepted.
func (m *Manager) Replay(in Intent) (string, bool, error) {
	var ok bool
	switch in.Kind {
	case IntentAbility:
		ok = m.ApplyAbility(in.Ability, in.Source, in.Targets)
	case IntentChoice:
		ok = m.ApplyChoice(in.Chain, in.Choice)
	case IntentUndo:
		ok = m.Undo()
	case IntentAdvance:
		_, err := m.AdvanceRound()
		ok = err == nil
	default:
		return "", false, &UnknownIntentError{Kind: in.Kind}
	}
	return m.Digest(), ok, nil
}

type UnknownIntentError struct{ Kind IntentKind }

func (e *UnknownIntentError) Error() string { return "unknown intent kind " + string(e.Kind) }
