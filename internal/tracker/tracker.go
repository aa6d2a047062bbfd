// Package tracker implements the progress reducer: a pure function
// (state, event) -> state' with no I/O, as specified for the Progress
// Tracker component.
package tracker

import (
	"github.com/takopi-bot/takopi/internal/domain"
)

// Tracker folds a run's Event sequence into a ProgressState. It holds no
// behavior beyond the current snapshot; NoteEvent is deterministic, so two
// Trackers fed identical event sequences end up byte-identical.
type Tracker struct {
	state domain.ProgressState
}

func New() *Tracker {
	return &Tracker{}
}

// State returns a snapshot safe to publish to the edits channel or render.
func (t *Tracker) State() domain.ProgressState {
	return t.state.Clone()
}

// NoteEvent applies ev to the current state and returns the new snapshot.
// Events received after a Completed has already been folded are
// ignored: no further events are consumed once a run is final.
func (t *Tracker) NoteEvent(ev domain.Event) domain.ProgressState {
	if t.state.Final {
		return t.State()
	}

	switch ev.Kind {
	case domain.EventStarted:
		t.state.EngineID = ev.EngineID
		if ev.ResumeToken != nil {
			t.state.ResumeToken = ev.ResumeToken
		}
		t.state.StartedAt = ev.Time

	case domain.EventAction:
		status := ev.ActionStatus
		if status == "" {
			status = domain.StatusDone
		}
		t.state.Actions = append(t.state.Actions, domain.Action{
			Title:     ev.ActionTitle,
			Status:    status,
			Detail:    ev.ActionDetail,
			StartedAt: ev.Time,
			EndedAt:   ev.Time,
		})

	case domain.EventActionStarted:
		t.state.Actions = append(t.state.Actions, domain.Action{
			ID:        ev.ActionID,
			Kind:      ev.ActionKind,
			Title:     ev.ActionTitle,
			Status:    domain.StatusRunning,
			StartedAt: ev.Time,
		})

	case domain.EventActionUpdated:
		idx := t.state.ActionIndex(ev.ActionID)
		if idx < 0 {
			// Unknown id: ignored.
			break
		}
		a := &t.state.Actions[idx]
		if a.Status.CanTransitionTo(ev.ActionStatus) || ev.ActionStatus == a.Status {
			if ev.ActionStatus != "" {
				a.Status = ev.ActionStatus
			}
		}
		if ev.ActionDetail != "" {
			a.Detail = ev.ActionDetail
		}

	case domain.EventActionCompleted:
		idx := t.state.ActionIndex(ev.ActionID)
		if idx < 0 {
			break
		}
		a := &t.state.Actions[idx]
		if a.Status.CanTransitionTo(ev.ActionStatus) {
			a.Status = ev.ActionStatus
		}
		if ev.ActionDetail != "" {
			a.Detail = ev.ActionDetail
		}
		a.EndedAt = ev.Time

	case domain.EventCompleted:
		t.state.Final = true
		t.state.OK = ev.OK
		t.state.Answer = ev.Answer
		t.state.Error = ev.Err
		if ev.ResumeToken != nil {
			t.state.ResumeToken = ev.ResumeToken
		}
	}

	if ev.ResumeToken != nil {
		t.state.ResumeToken = ev.ResumeToken
	}

	return t.State()
}
