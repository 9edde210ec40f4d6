package script

import (
	"bytes"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/wippyai/refbridge/bridge"
	"github.com/wippyai/refbridge/errors"
	"github.com/wippyai/refbridge/heap"
	"github.com/wippyai/refbridge/resource"
)

type socket struct {
	sent []string
}

func (s *socket) Methods() map[string]any {
	return map[string]any{
		"send": func(msg string) int {
			s.sent = append(s.sent, msg)
			return len(s.sent)
		},
	}
}

type failingSocket struct{}

func (failingSocket) Methods() map[string]any {
	return map[string]any{
		"dial": func() error { return stderrors.New("connection refused") },
	}
}

func bindSocket(t *testing.T, r *Realm, drops *resource.Counter, name string) *socket {
	t.Helper()
	sock := &socket{}
	s := resource.New(sock, resource.WithName(name), resource.WithObserver(drops))
	err := r.Heap().Run(func(l *heap.Lock) error {
		w, err := bridge.Wrap(l, s)
		if err != nil {
			return err
		}
		s.Release()
		return r.Bind(l, name, w)
	})
	if err != nil {
		t.Fatalf("bind %s: %v", name, err)
	}
	return sock
}

func TestRealm_BindingProperties(t *testing.T) {
	drops := resource.NewCounter()
	r := NewRealm(heap.New())
	bindSocket(t, r, drops, "sock")

	v, err := r.Run(`sock.name + ":" + sock.strongCount() + ":" + sock.alive()`)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := v.String(); got != "sock:1:true" {
		t.Fatalf("got %q", got)
	}
}

func TestRealm_ExposedMethods(t *testing.T) {
	drops := resource.NewCounter()
	r := NewRealm(heap.New())
	sock := bindSocket(t, r, drops, "sock")

	v, err := r.Run(`sock.send("hello"); sock.send("world")`)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v.ToInteger() != 2 {
		t.Fatalf("send returned %v", v)
	}
	if strings.Join(sock.sent, ",") != "hello,world" {
		t.Fatalf("sent = %v", sock.sent)
	}
}

func TestRealm_BoundWrapperSurvivesGC(t *testing.T) {
	drops := resource.NewCounter()
	r := NewRealm(heap.New())
	bindSocket(t, r, drops, "sock")

	v, err := r.Run(`gc()`)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v.ToInteger() != 0 || drops.Destroyed("sock") != 0 {
		t.Fatal("bound wrapper must not be collected")
	}

	v, err = r.Run(`release("sock"); gc()`)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v.ToInteger() != 1 || drops.Destroyed("sock") != 1 {
		t.Fatalf("gc() = %v, destroyed = %d", v, drops.Destroyed("sock"))
	}
	if len(r.Bound()) != 0 {
		t.Fatalf("Bound = %v", r.Bound())
	}
}

func TestRealm_ObjectDetachedAfterCollection(t *testing.T) {
	drops := resource.NewCounter()
	r := NewRealm(heap.New())
	sock := bindSocket(t, r, drops, "sock")

	v, err := r.Run(`var x = sock; x.send("before"); release("sock"); gc() + ":" + x.alive()`)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v.String() != "1:false" || drops.Destroyed("sock") != 1 {
		t.Fatalf("got %q, destroyed = %d", v.String(), drops.Destroyed("sock"))
	}

	for _, src := range []string{`x.send("after")`, `x.strongCount()`} {
		_, err = r.Run(src)
		if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseScript, Kind: errors.KindDeadPayload}) {
			t.Errorf("%s: err = %v, want dead_payload", src, err)
		}
	}
	if strings.Join(sock.sent, ",") != "before" {
		t.Fatalf("sent = %v, torn down payload was used", sock.sent)
	}

	v, err = r.Run(`try { x.send("caught"); "sent" } catch (e) { "threw" }`)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v.String() != "threw" {
		t.Fatalf("got %q", v.String())
	}
}

func TestRealm_ExposedMethodErrorsPropagate(t *testing.T) {
	r := NewRealm(heap.New())
	s := resource.New(&failingSocket{})
	err := r.Heap().Run(func(l *heap.Lock) error {
		w, err := bridge.Wrap(l, s)
		if err != nil {
			return err
		}
		s.Release()
		return r.Bind(l, "f", w)
	})
	if err != nil {
		t.Fatalf("bind: %v", err)
	}

	v, err := r.Run(`try { f.dial(); "ok" } catch (e) { "caught" }`)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v.String() != "caught" {
		t.Fatalf("got %q", v.String())
	}
	if _, err := r.Run(`f.dial()`); err == nil || !strings.Contains(err.Error(), "refused") {
		t.Fatalf("err = %v, want the method's error", err)
	}
}

func TestRealm_BoundAndLive(t *testing.T) {
	drops := resource.NewCounter()
	r := NewRealm(heap.New())
	bindSocket(t, r, drops, "b")
	bindSocket(t, r, drops, "a")

	v, err := r.Run(`bound().join(",") + "/" + live()`)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v.String() != "a,b/2" {
		t.Fatalf("got %q", v.String())
	}
	if w, ok := r.Lookup("a"); !ok || w.Name() != "a" {
		t.Fatal("Lookup should find the binding")
	}
}

func TestRealm_ReleaseUnknown(t *testing.T) {
	r := NewRealm(heap.New())

	_, err := r.Run(`release("missing")`)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseScript, Kind: errors.KindScriptFailed}) {
		t.Fatalf("err = %v, want script_failed", err)
	}
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseScript, Kind: errors.KindNotFound}) {
		t.Fatalf("err = %v, want not_found cause", err)
	}
}

func TestRealm_SyntaxError(t *testing.T) {
	r := NewRealm(heap.New())
	_, err := r.Run(`this is not js`)
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Phase != errors.PhaseScript {
		t.Fatalf("err = %v, want script error", err)
	}
}

func TestRealm_Interrupt(t *testing.T) {
	r := NewRealm(heap.New())
	_, err := r.RunTimeout(`for (;;) {}`, 20*time.Millisecond)
	if err == nil {
		t.Fatal("endless loop should be interrupted")
	}

	v, err := r.Run(`1 + 1`)
	if err != nil || v.ToInteger() != 2 {
		t.Fatalf("realm unusable after interrupt: %v, %v", v, err)
	}
}

func TestRealm_ConsoleLog(t *testing.T) {
	var out bytes.Buffer
	r := NewRealm(heap.New()).WithOutput(&out)

	if _, err := r.Run(`console.log("live", 3)`); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.String() != "live 3\n" {
		t.Fatalf("output = %q", out.String())
	}
}

func TestRealm_BindErrors(t *testing.T) {
	drops := resource.NewCounter()
	r := NewRealm(heap.New())
	bindSocket(t, r, drops, "sock")

	err := r.Heap().Run(func(l *heap.Lock) error {
		w, _ := r.Lookup("sock")
		if err := r.Bind(l, "sock", w); err == nil {
			t.Error("duplicate binding should fail")
		}
		if err := r.Bind(l, "", w); err == nil {
			t.Error("empty name should fail")
		}
		return r.Unbind(l, "nope")
	})
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseScript, Kind: errors.KindNotFound}) {
		t.Fatalf("err = %v, want not_found", err)
	}
}
