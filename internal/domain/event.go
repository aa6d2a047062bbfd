package domain

import "time"

// EventKind is the tagged discriminant of the Event union. Avoid growing
// an inheritance hierarchy here: every field a variant needs lives flat
// on Event, and Kind says which fields are meaningful.
type EventKind string

const (
	EventStarted         EventKind = "started"
	EventAction          EventKind = "action"
	EventActionStarted   EventKind = "action_started"
	EventActionUpdated   EventKind = "action_updated"
	EventActionCompleted EventKind = "action_completed"
	EventCompleted       EventKind = "completed"
)

// Event is a normalized engine event. Every event carries EngineID; once a
// resume token becomes known for a run, every subsequent event carries it.
type Event struct {
	Kind        EventKind
	EngineID    EngineID
	ResumeToken *ResumeToken
	Time        time.Time

	// Started
	ResumeKnown bool

	// Action (unindexed, appended verbatim to the action list)
	ActionTitle string

	// ActionStarted / ActionUpdated / ActionCompleted
	ActionID     string
	ActionKind   string
	ActionStatus ActionStatus
	ActionDetail string

	// Completed
	OK     bool
	Answer string
	Err    string
}

// EventFactory stamps every event produced by a runner with its owning
// engine id and the most recently observed resume token, so translators
// never have to thread that bookkeeping through each call site.
type EventFactory struct {
	EngineID EngineID
	token    *ResumeToken
}

func NewEventFactory(engineID EngineID) *EventFactory {
	return &EventFactory{EngineID: engineID}
}

// SetResumeToken records the token to stamp onto subsequent events.
// Once set for a run it is never cleared: a resume token observed
// mid-run is preserved even if the run later cancels or errors.
func (f *EventFactory) SetResumeToken(t *ResumeToken) {
	if t != nil {
		f.token = t
	}
}

func (f *EventFactory) Token() *ResumeToken { return f.token }

func (f *EventFactory) stamp(e Event) Event {
	e.EngineID = f.EngineID
	e.ResumeToken = f.token
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	return e
}

func (f *EventFactory) Started(resumeKnown bool) Event {
	return f.stamp(Event{Kind: EventStarted, ResumeKnown: resumeKnown})
}

func (f *EventFactory) ActionLine(title string) Event {
	return f.stamp(Event{Kind: EventAction, ActionTitle: title, ActionStatus: StatusDone})
}

// WarningActionLine is the "child exited non-zero" signal: a standalone
// action event carrying status=warning and a detail (typically the
// truncated stderr tail).
func (f *EventFactory) WarningActionLine(title, detail string) Event {
	return f.stamp(Event{Kind: EventAction, ActionTitle: title, ActionStatus: StatusWarning, ActionDetail: detail})
}

func (f *EventFactory) ActionStarted(id, kind, title string) Event {
	return f.stamp(Event{Kind: EventActionStarted, ActionID: id, ActionKind: kind, ActionTitle: title})
}

func (f *EventFactory) ActionUpdated(id string, status ActionStatus, detail string) Event {
	return f.stamp(Event{Kind: EventActionUpdated, ActionID: id, ActionStatus: status, ActionDetail: detail})
}

func (f *EventFactory) ActionCompleted(id string, status ActionStatus, detail string) Event {
	return f.stamp(Event{Kind: EventActionCompleted, ActionID: id, ActionStatus: status, ActionDetail: detail})
}

func (f *EventFactory) Completed(ok bool, answer, errMsg string) Event {
	return f.stamp(Event{Kind: EventCompleted, OK: ok, Answer: answer, Err: errMsg})
}
