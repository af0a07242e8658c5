package faults

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_userFacingMessageOnly(t *testing.T) {
	t.Parallel()
	cause := errors.New("dial tcp 127.0.0.1:443: connection refused")
	err := Transport(cause)
	if strings.Contains(err.Error(), "dial tcp") {
		t.Errorf("Error() leaked transport detail: %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("cause should be reachable via errors.Is")
	}
}

func TestKindOf_allConstructors(t *testing.T) {
	t.Parallel()
	cases := []struct {
		err  error
		want Kind
	}{
		{Transport(errors.New("boom")), KindTransport},
		{EmptyResponse(), KindEmptyResponse},
		{ParseFailure("no complete file blocks found"), KindParseFailure},
		{AllBlocked(3), KindScopeViolation},
		{Canceled(), KindCanceled},
	}
	for _, c := range cases {
		if got := KindOf(c.err); got != c.want {
			t.Errorf("KindOf(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestKindOf_foreignError(t *testing.T) {
	t.Parallel()
	if got := KindOf(errors.New("plain")); got != 0 {
		t.Errorf("KindOf(plain error) = %d, want 0", got)
	}
	if got := KindOf(nil); got != 0 {
		t.Errorf("KindOf(nil) = %d, want 0", got)
	}
}

func TestKindOf_wrapped(t *testing.T) {
	t.Parallel()
	inner := EmptyResponse()
	wrapped := fmt.Errorf("session: %w", inner)
	if got := KindOf(wrapped); got != KindEmptyResponse {
		t.Errorf("KindOf(wrapped) = %d, want KindEmptyResponse", got)
	}
}

func TestMessages_distinctPerKind(t *testing.T) {
	t.Parallel()
	msgs := map[string]bool{}
	for _, err := range []error{Transport(nil), EmptyResponse(), ParseFailure(""), AllBlocked(2), Canceled()} {
		if msgs[err.Error()] {
			t.Errorf("duplicate message across kinds: %q", err.Error())
		}
		msgs[err.Error()] = true
	}
}
