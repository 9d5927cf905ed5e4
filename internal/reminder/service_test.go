package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"birthdayd/internal/birthday"
	"birthdayd/internal/eventbus"
	"birthdayd/internal/storage"
	"birthdayd/pkg/logx"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

type fakeNotifier struct {
	mu       sync.Mutex
	calls    []birthday.Target
	sounds   []bool
	fail     error
	block    chan struct{} // when set, Notify parks here after recording
	entered  chan struct{} // signaled once per Notify before parking
	onNotify func()        // runs inside every Notify call
}

func (f *fakeNotifier) Notify(ctx context.Context, target birthday.Target, sound bool) error {
	f.mu.Lock()
	f.calls = append(f.calls, target)
	f.sounds = append(f.sounds, sound)
	fail := f.fail
	f.mu.Unlock()
	if f.onNotify != nil {
		f.onNotify()
	}
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	return fail
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeNotifier) setFail(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	st, err := storage.Open(storage.Config{Driver: "memory"}, logx.Nop())
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func addEntity(t *testing.T, st storage.Store, name string, month, day int) int64 {
	t.Helper()
	e := birthday.Entity{
		Name:          name,
		BirthMonth:    intPtr(month),
		BirthDay:      intPtr(day),
		NotifyEnabled: true,
	}
	id, err := st.Add(context.Background(), &e)
	if err != nil {
		t.Fatalf("add %s: %v", name, err)
	}
	return id
}

// newTestService wires a service with an injected clock. The clock
// defaults to the configured notify time so ticks fall in-window.
func newTestService(t *testing.T, st storage.Store, notif Notifier, at time.Time) *Service {
	t.Helper()
	s := New(Config{}, st, notif, eventbus.New(), logx.Nop())
	s.clock = func() time.Time { return at }
	return s
}

// inWindow is the default settings' notify time (12:00) on the given day.
func inWindow(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
}

func TestCycleDispatchesDueEntityOnce(t *testing.T) {
	st := newTestStore(t)
	addEntity(t, st, "Anna", 6, 16) // tomorrow, inside default 1-day window
	notif := &fakeNotifier{}
	s := newTestService(t, st, notif, inWindow(2025, time.June, 15))

	ctx := context.Background()
	s.TriggerNow(ctx)
	if got := notif.count(); got != 1 {
		t.Fatalf("first cycle: %d dispatches, want 1", got)
	}

	// Same calendar day, later tick: the ledger suppresses a repeat.
	s.clock = func() time.Time { return inWindow(2025, time.June, 15).Add(10 * time.Minute) }
	s.TriggerNow(ctx)
	if got := notif.count(); got != 1 {
		t.Fatalf("second same-day cycle: %d dispatches, want 1", got)
	}

	// Next day the entity is due again (birthday itself) and the key rolls.
	s.clock = func() time.Time { return inWindow(2025, time.June, 16) }
	s.TriggerNow(ctx)
	if got := notif.count(); got != 2 {
		t.Fatalf("next-day cycle: %d dispatches, want 2", got)
	}
}

func TestFailedDispatchRetriedSameDay(t *testing.T) {
	st := newTestStore(t)
	addEntity(t, st, "Bea", 6, 15)
	notif := &fakeNotifier{}
	notif.setFail(errors.New("bus unavailable"))
	s := newTestService(t, st, notif, inWindow(2025, time.June, 15))

	ctx := context.Background()
	s.TriggerNow(ctx)
	if got := notif.count(); got != 1 {
		t.Fatalf("failing cycle: %d attempts, want 1", got)
	}

	// The failure left the ledger unwritten, so the next in-window cycle
	// retries the same entity on the same day.
	notif.setFail(nil)
	s.TriggerNow(ctx)
	if got := notif.count(); got != 2 {
		t.Fatalf("retry cycle: %d attempts, want 2", got)
	}

	// Now it stuck.
	s.TriggerNow(ctx)
	if got := notif.count(); got != 2 {
		t.Fatalf("post-retry cycle: %d attempts, want 2", got)
	}
}

func TestOutOfWindowTickIsNoop(t *testing.T) {
	st := newTestStore(t)
	addEntity(t, st, "Cato", 6, 15)
	notif := &fakeNotifier{}
	s := newTestService(t, st, notif, time.Date(2025, time.June, 15, 8, 0, 0, 0, time.UTC))

	s.TriggerNow(context.Background())
	if got := notif.count(); got != 0 {
		t.Fatalf("out-of-window cycle dispatched %d, want 0", got)
	}
}

func TestWithinWindow(t *testing.T) {
	tol := 30 * time.Minute
	cases := []struct {
		name string
		now  time.Time
		h, m int
		want bool
	}{
		{"exact", time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC), 12, 0, true},
		{"edge before", time.Date(2025, 1, 1, 11, 30, 0, 0, time.UTC), 12, 0, true},
		{"edge after", time.Date(2025, 1, 1, 12, 30, 0, 0, time.UTC), 12, 0, true},
		{"just outside", time.Date(2025, 1, 1, 12, 30, 1, 0, time.UTC), 12, 0, false},
		{"far off", time.Date(2025, 1, 1, 3, 0, 0, 0, time.UTC), 12, 0, false},
		{"midnight wrap before", time.Date(2025, 1, 1, 23, 45, 0, 0, time.UTC), 0, 0, true},
		{"midnight wrap after", time.Date(2025, 1, 1, 0, 15, 0, 0, time.UTC), 23, 50, true},
		{"midnight wrap outside", time.Date(2025, 1, 1, 23, 15, 0, 0, time.UTC), 0, 0, false},
	}
	for _, tc := range cases {
		if got := withinWindow(tc.now, tc.h, tc.m, tol); got != tc.want {
			t.Errorf("%s: withinWindow(%v, %02d:%02d) = %v, want %v",
				tc.name, tc.now.Format("15:04:05"), tc.h, tc.m, got, tc.want)
		}
	}
}

func TestSoundOverrideResolution(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	id := addEntity(t, st, "Dag", 6, 15)
	e, err := st.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	e.NotifySound = boolPtr(false)
	if err := st.Update(ctx, &e); err != nil {
		t.Fatalf("update: %v", err)
	}
	addEntity(t, st, "Eve", 6, 16)

	notif := &fakeNotifier{}
	s := newTestService(t, st, notif, inWindow(2025, time.June, 15))
	s.TriggerNow(ctx)

	notif.mu.Lock()
	defer notif.mu.Unlock()
	if len(notif.calls) != 2 {
		t.Fatalf("dispatched %d, want 2", len(notif.calls))
	}
	for i, target := range notif.calls {
		want := true // global default
		if target.Entity.Name == "Dag" {
			want = false
		}
		if notif.sounds[i] != want {
			t.Errorf("%s: sound = %v, want %v", target.Entity.Name, notif.sounds[i], want)
		}
	}
}

func TestConcurrentTriggerDropped(t *testing.T) {
	st := newTestStore(t)
	addEntity(t, st, "Finn", 6, 15)
	notif := &fakeNotifier{
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	s := newTestService(t, st, notif, inWindow(2025, time.June, 15))

	done := make(chan struct{})
	go func() {
		s.TriggerNow(context.Background())
		close(done)
	}()
	<-notif.entered

	// A trigger while the first cycle is parked in Notify must be
	// dropped, not queued.
	s.TriggerNow(context.Background())

	close(notif.block)
	<-done
	if got := notif.count(); got != 1 {
		t.Fatalf("dispatch attempts = %d, want 1 (second trigger dropped)", got)
	}
}

func TestCancellationStopsBetweenEntities(t *testing.T) {
	st := newTestStore(t)
	addEntity(t, st, "Gus", 6, 15)
	addEntity(t, st, "Hal", 6, 15)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	notif := &fakeNotifier{onNotify: cancel}
	s := newTestService(t, st, notif, inWindow(2025, time.June, 15))
	s.TriggerNow(ctx)

	// The entity already being processed finishes; the next is not started.
	if got := notif.count(); got != 1 {
		t.Fatalf("dispatch attempts = %d, want 1 after mid-cycle cancel", got)
	}
}

func TestCyclePrunesOldLedgerEntries(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	id := addEntity(t, st, "Ida", 1, 1)

	stale := birthday.DateKey(inWindow(2025, time.June, 15).AddDate(0, 0, -60))
	if err := st.RecordDelivered(ctx, id, stale); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}

	notif := &fakeNotifier{}
	s := newTestService(t, st, notif, inWindow(2025, time.June, 15))
	s.TriggerNow(ctx)

	delivered, err := st.IsDelivered(ctx, id, stale)
	if err != nil {
		t.Fatalf("ledger check: %v", err)
	}
	if delivered {
		t.Fatal("stale ledger entry survived the cycle prune")
	}
}

func TestValidateCronSpec(t *testing.T) {
	if err := ValidateCronSpec("0 * * * *"); err != nil {
		t.Fatalf("valid spec rejected: %v", err)
	}
	if err := ValidateCronSpec("@hourly"); err != nil {
		t.Fatalf("descriptor rejected: %v", err)
	}
	if err := ValidateCronSpec("not a cron line"); err == nil {
		t.Fatal("garbage spec accepted")
	}
}

func TestStartStop(t *testing.T) {
	st := newTestStore(t)
	notif := &fakeNotifier{}
	s := New(Config{CronSpec: "* * * * *"}, st, notif, eventbus.New(), logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Start(ctx); err != nil {
		t.Fatalf("second start: %v", err)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	s.Stop(stopCtx)
	s.Stop(stopCtx) // idempotent
}

func TestApplyDuringActiveTicks(t *testing.T) {
	st := newTestStore(t)
	addEntity(t, st, "Jo", 6, 15)
	notif := &fakeNotifier{}
	s := New(Config{CronSpec: "@every 1ms"}, st, notif, eventbus.New(), logx.Nop())
	s.clock = func() time.Time { return inWindow(2025, time.June, 15) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop(context.Background())

	// Reload the schedule repeatedly while ticks are firing. Apply waits
	// for in-flight jobs, so it must not hold the state mutex a blocked
	// tick needs to complete.
	done := make(chan struct{})
	go func() {
		defer close(done)
		specs := []string{"@every 2ms", "@every 1ms"}
		for i := 0; i < 50; i++ {
			if err := s.Apply(Config{CronSpec: specs[i%2]}); err != nil {
				t.Errorf("apply %d: %v", i, err)
				return
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Apply stalled while ticks were firing")
	}
}

func TestApplyRejectsBadSpec(t *testing.T) {
	st := newTestStore(t)
	s := New(Config{}, st, &fakeNotifier{}, eventbus.New(), logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop(context.Background())

	if err := s.Apply(Config{CronSpec: "bogus"}); err == nil {
		t.Fatal("bad cron spec accepted on apply")
	}
}
