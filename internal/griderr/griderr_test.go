package griderr

import (
	"errors"
	"testing"
)

func TestIsMatchesCode(t *testing.T) {
	err := New(SessionNotCreated, "no capacity")
	if !Is(err, SessionNotCreated) {
		t.Fatal("expected Is to match SessionNotCreated")
	}
	if Is(err, Storage) {
		t.Fatal("expected Is not to match a different code")
	}
}

func TestIsMatchesThroughWrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(Storage, "write session record", cause)

	if !Is(err, Storage) {
		t.Fatal("expected Is to match through Wrap")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the wrapped cause")
	}
}

func TestIsFalseForUnrelatedError(t *testing.T) {
	if Is(errors.New("plain error"), Internal) {
		t.Fatal("expected Is to be false for a non-griderr error")
	}
}
