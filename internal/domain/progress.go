package domain

import "time"

// ProgressState is the folded snapshot of a run, suitable for rendering.
// It is produced only by Tracker.NoteEvent (see internal/tracker) and must
// never be mutated from anywhere else.
type ProgressState struct {
	EngineID    EngineID
	ResumeToken *ResumeToken
	Actions     []Action
	StartedAt   time.Time

	Final  bool
	OK     bool
	Answer string
	Error  string
}

// Clone returns a deep-enough copy safe to hand to a presenter or an edits
// channel while the tracker keeps mutating its own copy.
func (p ProgressState) Clone() ProgressState {
	out := p
	out.Actions = append([]Action(nil), p.Actions...)
	return out
}

// ActionIndex returns the index of the action with the given id, or -1.
func (p *ProgressState) ActionIndex(id string) int {
	for i := range p.Actions {
		if p.Actions[i].ID == id {
			return i
		}
	}
	return -1
}
