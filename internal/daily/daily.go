// Package daily wires cron-scheduled prompts into the Thread Scheduler. A
// schedule is a cron expression plus a thread and prompt, configured in
// config.toml, persisted via the store, or created at runtime through the
// "/schedule" command; robfig/cron/v3 drives firing.
package daily

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/takopi-bot/takopi/internal/config"
	"github.com/takopi-bot/takopi/internal/store"
	"github.com/takopi-bot/takopi/internal/transport"
)

// Dispatcher is the subset of handler.Handler that daily needs: feeding a
// synthesized inbound message through the normal routing/scheduling
// pipeline as if a user had sent it.
type Dispatcher interface {
	HandleInbound(ctx context.Context, in transport.Inbound)
}

type registeredPrompt struct {
	entryID  cron.EntryID
	threadID string
	text     string
}

// Scheduler owns a cron.Cron instance and keeps entry IDs indexed by the
// daily prompt they were registered for, so prompts can be reloaded,
// removed, or run on demand.
type Scheduler struct {
	cron       *cron.Cron
	dispatcher Dispatcher
	store      *store.Store

	mu      sync.Mutex
	entries map[string]registeredPrompt
}

func New(dispatcher Dispatcher, st *store.Store) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		dispatcher: dispatcher,
		store:      st,
		entries:    make(map[string]registeredPrompt),
	}
}

// LoadConfigPrompts registers the static prompts declared in config.toml,
// each keyed by its position since config-file prompts have no stable id.
func (s *Scheduler) LoadConfigPrompts(prompts []config.DailyPrompt) error {
	for i, p := range prompts {
		id := fmt.Sprintf("config-%d", i)
		if err := s.register(id, p.Cron, p.ThreadID, p.Engine, p.Prompt); err != nil {
			return fmt.Errorf("daily: config prompt %d: %w", i, err)
		}
	}
	return nil
}

// LoadStoredPrompts registers every enabled prompt persisted in the
// store, for schedules created at runtime via Add (the "/schedule add"
// command) that must survive a restart.
func (s *Scheduler) LoadStoredPrompts(ctx context.Context) error {
	rows, err := s.store.ListDailyPrompts(ctx)
	if err != nil {
		return fmt.Errorf("daily: list stored prompts: %w", err)
	}
	for _, r := range rows {
		if err := s.register(r.ID, r.Cron, r.ThreadID, r.EngineID, r.Prompt); err != nil {
			log.Printf("daily: skipping stored prompt %s: %v", r.ID, err)
		}
	}
	return nil
}

func (s *Scheduler) register(id, cronExpr, threadID, engineID, prompt string) error {
	text := prompt
	if engineID != "" {
		text = "/" + engineID + "\n" + prompt
	}
	entryID, err := s.cron.AddFunc(cronExpr, func() {
		s.fire(id, threadID, text)
	})
	if err != nil {
		return fmt.Errorf("bad cron expression %q: %w", cronExpr, err)
	}
	s.mu.Lock()
	s.entries[id] = registeredPrompt{entryID: entryID, threadID: threadID, text: text}
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) fire(id, threadID, text string) {
	log.Printf("daily: firing prompt id=%s thread=%s", id, threadID)
	s.dispatcher.HandleInbound(context.Background(), transport.Inbound{ThreadID: threadID, Text: text})
	if s.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.MarkDailyPromptFired(ctx, id, time.Now()); err != nil {
			log.Printf("daily: mark fired failed id=%s: %v", id, err)
		}
	}
}

// Add registers a new prompt for threadID at runtime: it is persisted to
// the store first (so a restart picks it back up via LoadStoredPrompts)
// then scheduled with cron. Returns the generated prompt id.
func (s *Scheduler) Add(ctx context.Context, threadID, cronExpr, engineID, prompt string) (string, error) {
	if s.store == nil {
		return "", errors.New("daily: store not configured")
	}
	id := uuid.NewString()
	row := store.DailyPromptRow{ID: id, Cron: cronExpr, ThreadID: threadID, EngineID: engineID, Prompt: prompt, Enabled: true}
	if err := s.store.UpsertDailyPrompt(ctx, row); err != nil {
		return "", fmt.Errorf("daily: persist prompt: %w", err)
	}
	if err := s.register(id, cronExpr, threadID, engineID, prompt); err != nil {
		_, _ = s.store.DeleteDailyPrompt(ctx, threadID, id)
		return "", err
	}
	return id, nil
}

// List returns every prompt scheduled for threadID, enabled or not.
func (s *Scheduler) List(ctx context.Context, threadID string) ([]store.DailyPromptRow, error) {
	if s.store == nil {
		return nil, errors.New("daily: store not configured")
	}
	return s.store.ListDailyPromptsForThread(ctx, threadID)
}

// Remove unregisters and deletes prompt id, scoped to threadID so one
// thread cannot cancel another thread's schedule.
func (s *Scheduler) Remove(ctx context.Context, threadID, id string) (bool, error) {
	if s.store == nil {
		return false, errors.New("daily: store not configured")
	}
	ok, err := s.store.DeleteDailyPrompt(ctx, threadID, id)
	if err != nil || !ok {
		return ok, err
	}
	s.mu.Lock()
	rp, found := s.entries[id]
	delete(s.entries, id)
	s.mu.Unlock()
	if found {
		s.cron.Remove(rp.entryID)
	}
	return true, nil
}

// SetEnabled toggles prompt id's enabled flag, scoped to threadID, adding
// or removing its live cron entry to match the new state.
func (s *Scheduler) SetEnabled(ctx context.Context, threadID, id string, enabled bool) (bool, error) {
	if s.store == nil {
		return false, errors.New("daily: store not configured")
	}
	ok, err := s.store.SetDailyPromptEnabled(ctx, threadID, id, enabled)
	if err != nil || !ok {
		return ok, err
	}

	if !enabled {
		s.mu.Lock()
		rp, found := s.entries[id]
		delete(s.entries, id)
		s.mu.Unlock()
		if found {
			s.cron.Remove(rp.entryID)
		}
		return true, nil
	}

	rows, err := s.store.ListDailyPromptsForThread(ctx, threadID)
	if err != nil {
		return true, err
	}
	for _, r := range rows {
		if r.ID == id {
			return true, s.register(id, r.Cron, r.ThreadID, r.EngineID, r.Prompt)
		}
	}
	return true, nil
}

// RunNow dispatches prompt id immediately instead of waiting for its next
// cron fire, scoped to threadID.
func (s *Scheduler) RunNow(threadID, id string) error {
	s.mu.Lock()
	rp, ok := s.entries[id]
	s.mu.Unlock()
	if !ok || rp.threadID != threadID {
		return errors.New("daily: prompt not found")
	}
	s.fire(id, rp.threadID, rp.text)
	return nil
}

// Start begins running registered cron entries in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop blocks until any in-flight cron invocations return.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
