package validate

import (
	"testing"
)

func TestCheckUsesJSONNames(t *testing.T) {
	type login struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	err := Check(login{Email: "not-an-email", Password: "x"})
	if err == nil {
		t.Fatal("expected a validation error")
	}
	if got, want := err.Error(), "email must be a valid email address"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	if err := Check(login{Email: "ada@example.com", Password: "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheckID(t *testing.T) {
	if err := CheckID(GenerateID()); err != nil {
		t.Fatalf("generated id rejected: %v", err)
	}
	if err := CheckID("order_123"); err == nil {
		t.Fatal("expected malformed id to be rejected")
	}
}
