package daily

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/takopi-bot/takopi/internal/store"
	"github.com/takopi-bot/takopi/internal/transport"
)

type recordingDispatcher struct {
	got []transport.Inbound
}

func (d *recordingDispatcher) HandleInbound(ctx context.Context, in transport.Inbound) {
	d.got = append(d.got, in)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "daily.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestParseClockTime(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"09:00", "0 9 * * *", true},
		{"23:59", "59 23 * * *", true},
		{"24:00", "", false},
		{"not a time", "", false},
	}
	for _, c := range cases {
		got, ok := parseClockTime(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("parseClockTime(%q) = (%q, %v), want (%q, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestParseDailyNL(t *testing.T) {
	cronExpr, prompt, ok := parseDailyNL("every day at 9am, summarize my inbox")
	if !ok {
		t.Fatalf("expected match")
	}
	if cronExpr != "0 9 * * *" {
		t.Errorf("cron = %q, want %q", cronExpr, "0 9 * * *")
	}
	if prompt != "summarize my inbox" {
		t.Errorf("prompt = %q, want %q", prompt, "summarize my inbox")
	}

	cronExpr, prompt, ok = parseDailyNL("every day at 9:30pm do the thing")
	if !ok {
		t.Fatalf("expected match")
	}
	if cronExpr != "30 21 * * *" {
		t.Errorf("cron = %q, want %q", cronExpr, "30 21 * * *")
	}
	if prompt != "do the thing" {
		t.Errorf("prompt = %q, want %q", prompt, "do the thing")
	}

	if _, _, ok := parseDailyNL("good morning"); ok {
		t.Fatalf("expected no match for non-schedule text")
	}
}

func TestScheduleAddListRemove(t *testing.T) {
	st := newTestStore(t)
	disp := &recordingDispatcher{}
	s := New(disp, st)
	ctx := context.Background()

	id, err := s.Add(ctx, "thread-1", "0 9 * * *", "", "good morning")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	rows, err := s.List(ctx, "thread-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != id || !rows[0].Enabled {
		t.Fatalf("List = %+v, want one enabled row with id %s", rows, id)
	}

	if rows, err := s.List(ctx, "thread-2"); err != nil || len(rows) != 0 {
		t.Fatalf("List for unrelated thread = %+v, %v, want empty", rows, err)
	}

	if ok, err := s.Remove(ctx, "thread-2", id); err != nil || ok {
		t.Fatalf("Remove from wrong thread = %v, %v, want (false, nil)", ok, err)
	}

	ok, err := s.Remove(ctx, "thread-1", id)
	if err != nil || !ok {
		t.Fatalf("Remove = %v, %v, want (true, nil)", ok, err)
	}

	rows, _ = s.List(ctx, "thread-1")
	if len(rows) != 0 {
		t.Fatalf("List after remove = %+v, want empty", rows)
	}
}

func TestScheduleSetEnabledAndRunNow(t *testing.T) {
	st := newTestStore(t)
	disp := &recordingDispatcher{}
	s := New(disp, st)
	ctx := context.Background()

	id, err := s.Add(ctx, "thread-1", "0 9 * * *", "", "good morning")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if ok, err := s.SetEnabled(ctx, "thread-1", id, false); err != nil || !ok {
		t.Fatalf("SetEnabled(false) = %v, %v", ok, err)
	}
	rows, _ := s.List(ctx, "thread-1")
	if len(rows) != 1 || rows[0].Enabled {
		t.Fatalf("List after disable = %+v, want disabled row", rows)
	}

	if err := s.RunNow("thread-1", id); err == nil {
		t.Fatalf("RunNow on disabled entry should fail, entries map has no live registration")
	}

	if ok, err := s.SetEnabled(ctx, "thread-1", id, true); err != nil || !ok {
		t.Fatalf("SetEnabled(true) = %v, %v", ok, err)
	}

	if err := s.RunNow("thread-1", id); err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if len(disp.got) != 1 || disp.got[0].ThreadID != "thread-1" {
		t.Fatalf("dispatcher got = %+v, want one inbound for thread-1", disp.got)
	}

	if err := s.RunNow("thread-2", id); err == nil {
		t.Fatalf("RunNow from wrong thread should fail")
	}
}

func TestHandleCommand(t *testing.T) {
	st := newTestStore(t)
	disp := &recordingDispatcher{}
	s := New(disp, st)
	ctx := context.Background()

	if got := s.HandleCommand(ctx, "thread-1", "/schedule list"); got != "no schedules for this thread" {
		t.Fatalf("list on empty = %q", got)
	}

	add := s.HandleCommand(ctx, "thread-1", "/schedule add 09:00 good morning")
	if add == scheduleUsage {
		t.Fatalf("add returned usage: %q", add)
	}

	rows, err := s.List(ctx, "thread-1")
	if err != nil || len(rows) != 1 {
		t.Fatalf("List after add = %+v, %v", rows, err)
	}
	id := rows[0].ID

	if got := s.HandleCommand(ctx, "thread-1", "/schedule off "+id); got != "disabled "+id {
		t.Fatalf("off = %q", got)
	}
	if got := s.HandleCommand(ctx, "thread-1", "/schedule on "+id); got != "enabled "+id {
		t.Fatalf("on = %q", got)
	}
	if got := s.HandleCommand(ctx, "thread-1", "/schedule run "+id); got != "ran "+id {
		t.Fatalf("run = %q", got)
	}
	if got := s.HandleCommand(ctx, "thread-1", "/schedule rm "+id); got != "removed "+id {
		t.Fatalf("rm = %q", got)
	}
	if got := s.HandleCommand(ctx, "thread-1", "/schedule bogus"); got != scheduleUsage {
		t.Fatalf("bogus subcommand = %q, want usage", got)
	}
}
