package errors

import (
	stderrs "errors"
	"fmt"
	"testing"
)

func TestNewWrapAndCodes(t *testing.T) {
	base := New(ErrorCodeStale, "token consumed")
	if base.Error() != "token consumed" {
		t.Fatalf("Error() = %q", base.Error())
	}
	if !IsCode(base, ErrorCodeStale) {
		t.Fatalf("IsCode(Stale) = false")
	}

	wrapped := Wrapf(base, ErrorCodeUnknown, "callback %s", "post:vk:abc")
	if CodeOf(wrapped) != ErrorCodeUnknown {
		t.Fatalf("CodeOf(wrapped) = %d", CodeOf(wrapped))
	}
	if Root(wrapped) == nil || Root(wrapped).Error() != "token consumed" {
		t.Fatalf("Root(wrapped) = %v", Root(wrapped))
	}
	if !stderrs.Is(wrapped, wrapped) {
		t.Fatalf("errors.Is identity failed")
	}
}

func TestCodeOfForeignError(t *testing.T) {
	err := fmt.Errorf("plain")
	if CodeOf(err) != ErrorCodeUnknown {
		t.Fatalf("CodeOf(plain) = %d, want Unknown", CodeOf(err))
	}
	if _, ok := As(err); ok {
		t.Fatalf("As(plain) should be false")
	}
}

func TestWithOp(t *testing.T) {
	err := EmptyPublishf("no messages for %s", "wall:7")
	tagged := WithOp(err, "publish.wall")
	e, ok := As(tagged)
	if !ok || e.Op() != "publish.wall" {
		t.Fatalf("WithOp did not tag: %#v", tagged)
	}
	// original untouched (copy on write)
	o, _ := As(err)
	if o.Op() != "" {
		t.Fatalf("WithOp mutated original")
	}
	// foreign error passes through unchanged
	plain := fmt.Errorf("x")
	if WithOp(plain, "op") != plain {
		t.Fatalf("WithOp should return foreign errors unchanged")
	}
}

func TestWrapIf(t *testing.T) {
	if WrapIf(nil, ErrorCodeStorageWrite, "save") != nil {
		t.Fatalf("WrapIf(nil) should be nil")
	}
	err := WrapIf(fmt.Errorf("disk full"), ErrorCodeStorageWrite, "save")
	if !IsCode(err, ErrorCodeStorageWrite) {
		t.Fatalf("WrapIf code = %d", CodeOf(err))
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{Unavailablef("vk down"), true},
		{New(ErrorCodeTooManyRequests, "429"), true},
		{Stalef("old token"), false},
		{Deniedf("not a moderator"), false},
		{InvalidActionf("bad data"), false},
		{fmt.Errorf("plain"), false},
	}
	for _, c := range cases {
		if got := Retryable(c.err); got != c.want {
			t.Fatalf("Retryable(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}
