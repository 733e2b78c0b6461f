package weberr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestResponseThroughWrapping(t *testing.T) {
	base := errors.New("missing order")
	err := fmt.Errorf("handler: %w", NotFound(base))

	body, status, ok := Response(err)
	if !ok {
		t.Fatal("expected a response to be attached")
	}
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
	if diff := cmp.Diff(&ErrorResponse{"the resource could not be found"}, body); diff != "" {
		t.Fatalf("body mismatch (-want +got):\n%s", diff)
	}
	if !errors.Is(err, base) {
		t.Fatal("wrapped error lost its cause")
	}
}

func TestFieldsMerge(t *testing.T) {
	inner := Wrap(errors.New("boom"), WithFields(map[string]any{"order_id": "o1", "stage": "inner"}))
	outer := Wrap(fmt.Errorf("dispatch: %w", inner), WithFields(map[string]any{"stage": "outer"}))

	got, ok := Fields(outer)
	if !ok {
		t.Fatal("expected fields")
	}

	want := map[string]any{"order_id": "o1", "stage": "outer"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestPlainErrorHasNothingAttached(t *testing.T) {
	err := errors.New("plain")
	if _, _, ok := Response(err); ok {
		t.Fatal("plain error should carry no response")
	}
	if _, ok := Fields(err); ok {
		t.Fatal("plain error should carry no fields")
	}
}
