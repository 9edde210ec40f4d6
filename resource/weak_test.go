package resource

import (
	"sync"
	"testing"

	"github.com/wippyai/refbridge/errors"
)

func TestWeak_UpgradeIncrementsByOne(t *testing.T) {
	drops := NewCounter()
	strong := New(&simpleResource{name: "test"}, WithObserver(drops))
	weak := strong.Downgrade()

	if weak.StrongCount() != 1 {
		t.Fatalf("StrongCount = %d, want 1", weak.StrongCount())
	}

	upgraded, ok := weak.Upgrade()
	if !ok {
		t.Fatal("Upgrade should succeed while a strong handle exists")
	}
	if weak.StrongCount() != 2 {
		t.Fatalf("StrongCount = %d, want 2", weak.StrongCount())
	}
	if upgraded.Get().name != "test" {
		t.Fatalf("upgraded payload = %q", upgraded.Get().name)
	}

	upgraded.Release()
	if weak.StrongCount() != 1 {
		t.Fatalf("StrongCount = %d, want 1", weak.StrongCount())
	}

	strong.Release()
	if drops.Destroyed("simpleResource") != 1 {
		t.Fatal("payload should be destroyed after last strong release")
	}

	weak.Release()
}

func TestWeak_UpgradeFailsAfterDestruction(t *testing.T) {
	strong := New(&simpleResource{})
	weak := strong.Downgrade()
	strong.Release()

	if s, ok := weak.Upgrade(); ok || s != nil {
		t.Fatal("Upgrade should fail once the payload is gone")
	}
	if weak.StrongCount() != 0 {
		t.Fatalf("StrongCount = %d, want 0", weak.StrongCount())
	}
	if strong.Control().Freed() {
		t.Fatal("control block must outlive outstanding weak handles")
	}

	weak.Release()
	if !strong.Control().Freed() {
		t.Fatal("control block should be freed after the last weak release")
	}
}

func TestWeak_DoesNotKeepPayloadAlive(t *testing.T) {
	drops := NewCounter()
	strong := New(&simpleResource{}, WithObserver(drops))
	w1 := strong.Downgrade()
	w2 := w1.Clone()

	if w1.WeakCount() != 2 {
		t.Fatalf("WeakCount = %d, want 2", w1.WeakCount())
	}

	strong.Release()
	if drops.Destroyed("simpleResource") != 1 {
		t.Fatal("weak handles must not defer destruction")
	}

	w1.Release()
	w2.Release()
	if drops.Count("simpleResource", EventFreed) != 1 {
		t.Fatal("expected one freed event")
	}
}

func TestWeak_UpgradeFailsWhenCondemned(t *testing.T) {
	strong := New(&simpleResource{})
	weak := strong.Downgrade()
	defer weak.Release()

	if !strong.Control().Condemn() {
		t.Fatal("Condemn should succeed on a live resource")
	}
	if strong.Control().Condemn() {
		t.Fatal("second Condemn should report false")
	}
	if _, ok := weak.Upgrade(); ok {
		t.Fatal("Upgrade must fail on a condemned resource")
	}
	if strong.StrongCount() != 1 {
		t.Fatalf("StrongCount = %d, want 1", strong.StrongCount())
	}

	if err := strong.Control().Reap(); err != nil {
		t.Fatalf("Reap: %v", err)
	}
	if strong.Control().Alive() {
		t.Fatal("Reap should destroy the payload")
	}

	// The remaining strong reference is released without a second teardown.
	strong.Release()
}

func TestReap_RequiresCondemn(t *testing.T) {
	strong := New(&simpleResource{})
	defer strong.Release()

	mustPanicKind(t, errors.KindInvalidInput, func() { _ = strong.Control().Reap() })
}

func TestWeak_ReleasedHandle(t *testing.T) {
	strong := New(&simpleResource{})
	defer strong.Release()
	weak := strong.Downgrade()
	weak.Release()

	mustPanicKind(t, errors.KindUseAfterRelease, func() { weak.Upgrade() })
	mustPanicKind(t, errors.KindDoubleRelease, func() { weak.Release() })
}

func TestWeak_UpgradeRacesRelease(t *testing.T) {
	for i := 0; i < 50; i++ {
		drops := NewCounter()
		strong := New(&simpleResource{}, WithObserver(drops))
		weak := strong.Downgrade()

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			strong.Release()
		}()
		go func() {
			defer wg.Done()
			if up, ok := weak.Upgrade(); ok {
				if !up.Control().Alive() {
					t.Error("upgrade returned a destroyed payload")
				}
				up.Release()
			}
		}()
		wg.Wait()

		if got := drops.Destroyed("simpleResource"); got != 1 {
			t.Fatalf("Destroyed = %d, want 1", got)
		}
		weak.Release()
	}
}

type handleRecorder struct {
	strong, weak int
}

func (r *handleRecorder) VisitStrong(Handle)    { r.strong++ }
func (r *handleRecorder) VisitWeak(Handle)      { r.weak++ }
func (r *handleRecorder) VisitObject(Traceable) {}

// selfReleasing drops the last outside handle to itself the first time it
// is traced, the way a release on another goroutine would.
type selfReleasing struct {
	child *Strong[*simpleResource]
	owner *Strong[*selfReleasing]
}

func (s *selfReleasing) Trace(v Visitor) {
	s.child.Trace(v)
	if s.owner != nil && !s.owner.Released() {
		s.owner.Release()
	}
}

func TestTracePinned_RestoresCount(t *testing.T) {
	child := New(&simpleResource{})
	parent := New(&parentResource{child: child.Clone()})
	defer parent.Release()
	defer child.Release()

	var rec handleRecorder
	ok, err := parent.Control().TracePinned(&rec)
	if !ok || err != nil {
		t.Fatalf("TracePinned = %v, %v", ok, err)
	}
	if rec.strong != 1 {
		t.Fatalf("strong visits = %d, want 1", rec.strong)
	}
	if parent.StrongCount() != 1 {
		t.Fatalf("StrongCount = %d after pin, want 1", parent.StrongCount())
	}
}

func TestTracePinned_SkipsDestroyed(t *testing.T) {
	s := New(&parentResource{child: New(&simpleResource{})})
	weak := s.Downgrade()
	defer weak.Release()
	s.Release()

	var rec handleRecorder
	ok, err := weak.Control().TracePinned(&rec)
	if ok || err != nil {
		t.Fatalf("TracePinned = %v, %v, want false", ok, err)
	}
	if rec.strong != 0 {
		t.Fatal("destroyed payload must not be traced")
	}
}

func TestTracePinned_LastReleaseDuringTrace(t *testing.T) {
	drops := NewCounter()
	p := &selfReleasing{child: New(&simpleResource{name: "child"}, WithName("child"), WithObserver(drops))}
	s := New(p, WithName("pinned"), WithObserver(drops))
	p.owner = s

	var rec handleRecorder
	ok, err := s.Control().TracePinned(&rec)
	if !ok || err != nil {
		t.Fatalf("TracePinned = %v, %v", ok, err)
	}
	if rec.strong != 1 {
		t.Fatalf("strong visits = %d, want 1", rec.strong)
	}
	if drops.Destroyed("pinned") != 1 || drops.Destroyed("child") != 1 {
		t.Fatal("dropping the pin should tear the payload down")
	}
	if !s.Control().Freed() {
		t.Fatal("control block should be freed")
	}
}

func TestTracePinned_RacesRelease(t *testing.T) {
	for i := 0; i < 100; i++ {
		drops := NewCounter()
		child := New(&simpleResource{}, WithName("child"), WithObserver(drops))
		parent := New(&parentResource{child: child}, WithName("parent"), WithObserver(drops))
		weak := parent.Downgrade()

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			parent.Release()
		}()
		go func() {
			defer wg.Done()
			var rec handleRecorder
			if ok, _ := weak.Control().TracePinned(&rec); ok && rec.strong != 1 {
				t.Errorf("pinned trace saw %d strong handles, want 1", rec.strong)
			}
		}()
		wg.Wait()

		if drops.Destroyed("parent") != 1 || drops.Destroyed("child") != 1 {
			t.Fatalf("destroyed parent=%d child=%d, want 1 each",
				drops.Destroyed("parent"), drops.Destroyed("child"))
		}
		weak.Release()
	}
}
