package errors

import (
	stderrs "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrorCodeNotFound, http.StatusNotFound},
		{ErrorCodeValidation, http.StatusBadRequest},
		{ErrorCodeInvalidArgument, http.StatusUnprocessableEntity},
		{ErrorCodeTooManyRequests, http.StatusTooManyRequests},
		{ErrorCodeUnavailable, http.StatusServiceUnavailable},
		{ErrorCodeDuplicateKey, http.StatusConflict},
		{ErrorCodeDB, http.StatusInternalServerError},
		{ErrorCodeUnknown, http.StatusInternalServerError},
		{ErrorCode(999), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			if got := HTTPStatusCode(tt.code); got != tt.want {
				t.Fatalf("HTTPStatusCode(%v) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}

func TestWrapChain(t *testing.T) {
	cause := stderrs.New("dial tcp: refused")
	err := Wrapf(cause, ErrorCodeUnavailable, "earthengine %s", "compute")
	outer := fmt.Errorf("ndvi: %w", err)

	if !IsCode(outer, ErrorCodeUnavailable) {
		t.Fatalf("CodeOf = %v, want unavailable", CodeOf(outer))
	}
	if Root(outer) != cause {
		t.Fatalf("Root = %v, want cause", Root(outer))
	}
	if got := err.Error(); got != "earthengine compute: dial tcp: refused" {
		t.Fatalf("Error() = %q", got)
	}
	status, wire := HTTP(outer)
	if status != http.StatusServiceUnavailable || wire.Message != "earthengine compute" {
		t.Fatalf("HTTP = %d %+v", status, wire)
	}
}

func TestWireFrom_Foreign(t *testing.T) {
	w := WireFrom(stderrs.New("boom"))
	if w.Code != ErrorCodeUnknown || w.Message != "boom" {
		t.Fatalf("WireFrom = %+v", w)
	}
	if (WireFrom(nil) != Wire{}) {
		t.Fatal("WireFrom(nil) should be zero")
	}
}

func TestWithField_CopyOnWrite(t *testing.T) {
	base := Validationf("locality is required")
	withField := WithField(base, "locality")

	if e, _ := As(base); e.Field() != "" {
		t.Fatal("original error mutated")
	}
	if e, _ := As(withField); e.Field() != "locality" {
		t.Fatalf("field = %q", e.Field())
	}
	foreign := stderrs.New("x")
	if WithField(foreign, "f") != foreign {
		t.Fatal("foreign error should be returned unchanged")
	}
}

func TestWrapIf(t *testing.T) {
	if WrapIf(nil, ErrorCodeDB, "x") != nil {
		t.Fatal("WrapIf(nil) should be nil")
	}
	if !IsCode(WrapIf(stderrs.New("y"), ErrorCodeDB, "x"), ErrorCodeDB) {
		t.Fatal("WrapIf should wrap with code")
	}
}
