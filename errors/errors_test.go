package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:    PhaseFinalize,
				Kind:     KindTeardownFailed,
				Resource: "Socket",
				ID:       7,
				Detail:   "close failed",
			},
			contains: []string{"[finalize]", "teardown_failed", "Socket#7", "close failed"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseRelease,
				Kind:  KindDoubleRelease,
			},
			contains: []string{"[release]", "double_release"},
		},
		{
			name: "id without name",
			err: &Error{
				Phase: PhaseUpgrade,
				Kind:  KindUseAfterRelease,
				ID:    3,
			},
			contains: []string{"resource#3"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseTeardown,
				Kind:   KindTeardownFailed,
				Detail: "hook failed",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[teardown]", "hook failed", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := TeardownFailed("Socket", 1, cause)

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not find cause through chain")
	}
}

func TestError_Is(t *testing.T) {
	err := DoubleRelease(PhaseRelease, "Socket", 9)

	if !err.Is(&Error{Phase: PhaseRelease, Kind: KindDoubleRelease}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseFinalize, Kind: KindDoubleRelease}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseRelease, Kind: KindUseAfterRelease}) {
		t.Error("Is should not match different kind")
	}

	var target *Error
	if !errors.As(error(err), &target) || target.ID != 9 {
		t.Errorf("errors.As = %v, want ID 9", target)
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseWrap, KindCrossContext).
		Resource("Parent", 12).
		Value(42).
		Cause(cause).
		Detail("wrapped by %s", "other").
		Build()

	if err.Phase != PhaseWrap {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseWrap)
	}
	if err.Kind != KindCrossContext {
		t.Errorf("Kind = %v, want %v", err.Kind, KindCrossContext)
	}
	if err.Resource != "Parent" || err.ID != 12 {
		t.Errorf("Resource = %s#%d, want Parent#12", err.Resource, err.ID)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "wrapped by other" {
		t.Errorf("Detail = %q", err.Detail)
	}
}

func TestFatal(t *testing.T) {
	defer func() {
		r := recover()
		err, ok := r.(*Error)
		if !ok {
			t.Fatalf("recovered %T, want *Error", r)
		}
		if err.Kind != KindDoubleFinalize {
			t.Errorf("Kind = %v, want %v", err.Kind, KindDoubleFinalize)
		}
	}()
	Fatal(DoubleFinalize("Socket", 1))
	t.Fatal("Fatal returned")
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		err   *Error
		phase Phase
		kind  Kind
	}{
		{UseAfterRelease(PhaseUpgrade, "R", 1), PhaseUpgrade, KindUseAfterRelease},
		{CountUnderflow(PhaseRelease, "R", 1, "weak"), PhaseRelease, KindCountUnderflow},
		{DeadPayload(PhaseWrap, "R", 1), PhaseWrap, KindDeadPayload},
		{CrossContext("R", 1), PhaseWrap, KindCrossContext},
		{NotLocked(PhaseWrap), PhaseWrap, KindNotLocked},
		{Reentrant(), PhaseCollect, KindReentrant},
		{Closed(PhaseHost, "heap"), PhaseHost, KindClosed},
		{NotFound(PhaseScript, "binding", "x"), PhaseScript, KindNotFound},
		{InvalidInput(PhaseHost, "nil wrapper"), PhaseHost, KindInvalidInput},
		{TypeMismatch(PhaseScript, "R", 1, "*Socket"), PhaseScript, KindTypeMismatch},
		{Registration("R", 1, errors.New("x")), PhaseHost, KindRegistration},
		{Script("run", errors.New("x")), PhaseScript, KindScriptFailed},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if tt.err.Phase != tt.phase || tt.err.Kind != tt.kind {
				t.Errorf("got [%s] %s, want [%s] %s", tt.err.Phase, tt.err.Kind, tt.phase, tt.kind)
			}
			if tt.err.Error() == "" {
				t.Error("empty message")
			}
		})
	}
}
