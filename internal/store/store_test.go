package store

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock lets tests advance time without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(clock *fakeClock) *Store {
	return New(Options{Now: clock.Now})
}

func TestSessionRegistry_RegisterGetRemove(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)

	s.RegisterSession("S1", "main:1.0", "/home/user/project")

	rec, ok := s.Session("S1")
	if !ok {
		t.Fatal("expected session S1 to be registered")
	}
	if rec.TerminalHandle != "main:1.0" {
		t.Errorf("expected handle main:1.0, got %q", rec.TerminalHandle)
	}
	if rec.Cwd != "/home/user/project" {
		t.Errorf("expected cwd /home/user/project, got %q", rec.Cwd)
	}

	// Re-registration overwrites.
	s.RegisterSession("S1", "dev:0.1", "/tmp")
	rec, _ = s.Session("S1")
	if rec.TerminalHandle != "dev:0.1" {
		t.Errorf("expected overwrite to dev:0.1, got %q", rec.TerminalHandle)
	}

	s.RemoveSession("S1")
	if _, ok := s.Session("S1"); ok {
		t.Error("expected session to be gone after remove")
	}

	// Removing an absent id is not an error.
	s.RemoveSession("S1")
	s.RemoveSession("never-existed")
}

func TestActionStore_PeekDoesNotConsume(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)

	s.CreateAction("tok1", "S1", KindPermission, "run rm -rf?", "proj", "Bash")

	for i := 0; i < 3; i++ {
		rec, ok := s.PeekAction("tok1")
		if !ok {
			t.Fatalf("peek %d: expected record", i)
		}
		if rec.Kind != KindPermission {
			t.Errorf("expected kind permission, got %s", rec.Kind)
		}
	}

	if _, ok := s.ConsumeAction("tok1"); !ok {
		t.Fatal("expected consume to succeed after peeks")
	}
}

func TestActionStore_ConsumeExactlyOnce(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)

	s.CreateAction("tok1", "S1", KindPermission, "msg", "proj", "")

	if _, ok := s.ConsumeAction("tok1"); !ok {
		t.Fatal("first consume should succeed")
	}
	if _, ok := s.ConsumeAction("tok1"); ok {
		t.Fatal("second consume must observe absent")
	}
	if _, ok := s.PeekAction("tok1"); ok {
		t.Fatal("peek after consume must observe absent")
	}
}

// TestActionStore_ConsumeConcurrent races many goroutines against a single
// token and verifies exactly one observes the record.
func TestActionStore_ConsumeConcurrent(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)

	const callers = 64
	for round := 0; round < 10; round++ {
		token := fmt.Sprintf("tok-%d", round)
		s.CreateAction(token, "S1", KindPermission, "msg", "proj", "")

		start := make(chan struct{})
		var winners int64
		var mu sync.Mutex
		var wg sync.WaitGroup

		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				if _, ok := s.ConsumeAction(token); ok {
					mu.Lock()
					winners++
					mu.Unlock()
				}
			}()
		}
		close(start)
		wg.Wait()

		if winners != 1 {
			t.Fatalf("round %d: expected exactly 1 winner, got %d", round, winners)
		}
	}
}

func TestActionStore_LazyExpiryOnPeek(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)

	s.CreateAction("tok1", "S1", KindIdle, "msg", "proj", "")

	clock.Advance(DefaultActionTTL + time.Second)

	if _, ok := s.PeekAction("tok1"); ok {
		t.Fatal("expected peek past TTL to report absent")
	}
	if _, ok := s.ConsumeAction("tok1"); ok {
		t.Fatal("expected consume past TTL to report absent")
	}
}

func TestActionStore_DuplicateTokenOverwrites(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)

	s.CreateAction("tok1", "S1", KindPermission, "first", "proj", "")
	s.CreateAction("tok1", "S2", KindIdle, "second", "proj2", "")

	rec, ok := s.PeekAction("tok1")
	if !ok {
		t.Fatal("expected record")
	}
	if rec.SessionID != "S2" || rec.Message != "second" {
		t.Errorf("expected overwritten record, got %+v", rec)
	}
}

func TestActionStore_MessageTruncated(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)

	long := make([]rune, 2000)
	for i := range long {
		long[i] = 'x'
	}
	rec := s.CreateAction("tok1", "S1", KindPermission, string(long), "proj", "")

	if got := len([]rune(rec.Message)); got > maxMessageRunes {
		t.Errorf("expected message capped at %d runes, got %d", maxMessageRunes, got)
	}
}

func TestDecisionChannel_SurvivesConsumption(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)

	s.CreateAction("tok1", "S1", KindPermission, "msg", "proj", "")

	// Click path: decision written, then action consumed.
	s.SetDecision("tok1", VerdictAllow)
	if _, ok := s.ConsumeAction("tok1"); !ok {
		t.Fatal("consume should succeed")
	}

	// A poller arriving after consumption still observes the verdict.
	v, ok := s.Decision("tok1")
	if !ok {
		t.Fatal("expected decision to survive action consumption")
	}
	if v != VerdictAllow {
		t.Errorf("expected allow, got %s", v)
	}
}

func TestDecisionChannel_FirstWriteWins(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)

	s.SetDecision("tok1", VerdictDeny)
	s.SetDecision("tok1", VerdictAllow)

	v, ok := s.Decision("tok1")
	if !ok {
		t.Fatal("expected decision")
	}
	if v != VerdictDeny {
		t.Errorf("verdict must be immutable once written, got %s", v)
	}
}

func TestDecisionChannel_NoDecisionYet(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)

	s.CreateAction("tok1", "S1", KindPermission, "msg", "proj", "")

	if _, ok := s.Decision("tok1"); ok {
		t.Fatal("expected no decision for unresolved token")
	}
}

func TestSweep_RemovesOnlyStaleRecords(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)

	s.RegisterSession("old", "a:0.0", "/old")
	s.CreateAction("old-tok", "old", KindPermission, "msg", "proj", "")
	s.SetDecision("old-decided", VerdictAllow)

	// Age the first batch past every window, then add fresh records.
	clock.Advance(DefaultSessionRetention + time.Minute)

	s.RegisterSession("fresh", "b:0.0", "/fresh")
	s.CreateAction("fresh-tok", "fresh", KindIdle, "msg", "proj", "")
	s.SetDecision("fresh-decided", VerdictDeny)

	s.Sweep(clock.Now())

	if _, ok := s.Session("old"); ok {
		t.Error("expected old session to be evicted")
	}
	if _, ok := s.Session("fresh"); !ok {
		t.Error("fresh session must survive sweep")
	}
	if _, ok := s.PeekAction("old-tok"); ok {
		t.Error("expected old action to be evicted")
	}
	if _, ok := s.PeekAction("fresh-tok"); !ok {
		t.Error("fresh action must survive sweep")
	}
	if _, ok := s.Decision("old-decided"); ok {
		t.Error("expected old decision to be evicted")
	}
	if _, ok := s.Decision("fresh-decided"); !ok {
		t.Error("fresh decision must survive sweep")
	}
}

func TestSweep_DropsConsumedActions(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)

	s.CreateAction("tok1", "S1", KindPermission, "msg", "proj", "")
	if _, ok := s.ConsumeAction("tok1"); !ok {
		t.Fatal("consume should succeed")
	}

	s.Sweep(clock.Now())

	_, actions, _ := s.Counts()
	if actions != 0 {
		t.Errorf("expected consumed action to be swept, %d remain", actions)
	}
}

func TestKind_NormalizeAndLabels(t *testing.T) {
	cases := []struct {
		raw  string
		want ActionKind
	}{
		{"permission", KindPermission},
		{"idle", KindIdle},
		{"elicitation", KindElicitation},
		{"completion", KindCompletion},
		{"", KindUnspecified},
		{"bogus", KindUnspecified},
	}
	for _, tc := range cases {
		if got := NormalizeKind(tc.raw); got != tc.want {
			t.Errorf("NormalizeKind(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}

	for _, k := range []ActionKind{KindPermission, KindIdle, KindElicitation, KindCompletion, KindUnspecified} {
		if k.Label() == "" {
			t.Errorf("kind %s has empty label", k)
		}
		if k.Icon() == "" {
			t.Errorf("kind %s has empty icon", k)
		}
	}
}

func TestStore_SweeperLifecycle(t *testing.T) {
	s := New(Options{})
	s.StartSweeper(10 * time.Millisecond)

	s.RegisterSession("S1", "a:0.0", "/p")
	time.Sleep(30 * time.Millisecond)

	// Nothing should have been evicted; records are fresh.
	if _, ok := s.Session("S1"); !ok {
		t.Error("sweeper must not evict records inside their window")
	}

	s.Close()
	s.Close() // idempotent
}
