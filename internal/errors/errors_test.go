package errors

import (
	stderrors "errors"
	"testing"
)

func TestAppErrorMessage(t *testing.T) {
	err := New(ErrOffline, "cannot sync")
	want := "[OFFLINE] cannot sync"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(ErrPersistence, "failed to enqueue change", cause)

	if !stderrors.Is(err, cause) {
		t.Error("expected wrapped error to match cause")
	}
	if err.Error() != "[PERSISTENCE_ERROR] failed to enqueue change: disk full" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestIs(t *testing.T) {
	err := New(ErrRetryExceeded, "gave up")
	if !Is(err, ErrRetryExceeded) {
		t.Error("expected code match")
	}
	if Is(err, ErrOffline) {
		t.Error("expected code mismatch")
	}
	if Is(stderrors.New("plain"), ErrOffline) {
		t.Error("plain errors have no code")
	}
}

func TestCodeOf(t *testing.T) {
	if CodeOf(New(ErrTransport, "boom")) != ErrTransport {
		t.Error("expected transport code")
	}
	if CodeOf(stderrors.New("plain")) != ErrInternal {
		t.Error("expected internal fallback for plain errors")
	}
}
