package gomyerr

import (
	"errors"
	"testing"
)

func TestErrorMessageFormatting(t *testing.T) {
	e := New(KindTimeout, "acquire timed out after %s", "5s")
	if got, want := e.Error(), "gomy: timeout: acquire timed out after 5s"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	cause := errors.New("connection refused")
	wrapped := Wrap(KindNetwork, cause, "dialing backend")
	if got, want := wrapped.Error(), "gomy: network: dialing backend: connection refused"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	srv := Server(1045, "28000", "Access denied for user")
	if got, want := srv.Error(), "gomy: server (1045, 28000): Access denied for user"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("eof")
	wrapped := Wrap(KindNetwork, cause, "reading frame")
	if !errors.Is(wrapped, cause) {
		t.Error("expected errors.Is to see through Wrap to the cause")
	}
}

func TestErrorIsMatchesByKind(t *testing.T) {
	err := New(KindCircuitOpen, "breaker open")
	if !errors.Is(err, New(KindCircuitOpen, "")) {
		t.Error("expected errors.Is to match same Kind")
	}
	if errors.Is(err, New(KindTimeout, "")) {
		t.Error("expected errors.Is to reject different Kind")
	}
}

func TestKindOf(t *testing.T) {
	err := Wrap(KindAuthInvalid, errors.New("bad password"), "authenticating")
	kind, ok := KindOf(err)
	if !ok {
		t.Fatal("expected KindOf to find a *Error in the chain")
	}
	if kind != KindAuthInvalid {
		t.Errorf("KindOf() = %v, want %v", kind, KindAuthInvalid)
	}

	_, ok = KindOf(errors.New("plain error"))
	if ok {
		t.Error("expected KindOf to report false for a non-gomyerr error")
	}
}

func TestIsFatal(t *testing.T) {
	cases := map[string]bool{
		"08S01": true,
		"08004": true,
		"HY000": false,
		"42000": false,
	}
	for sqlState, want := range cases {
		if got := IsFatal(sqlState); got != want {
			t.Errorf("IsFatal(%q) = %v, want %v", sqlState, got, want)
		}
	}
}
