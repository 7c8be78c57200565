package notify

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestStaticDirectory_ResolveDefaultsToAlertsInvalidDomain(t *testing.T) {
	dir := StaticDirectory{}
	orgID := uuid.New()

	dest, err := dir.Resolve(context.Background(), orgID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(dest.Email, "@alerts.invalid") {
		t.Fatalf("got email %q, want it to end with @alerts.invalid", dest.Email)
	}
	if !strings.Contains(dest.Email, orgID.String()) {
		t.Fatalf("got email %q, want it to embed the organization id", dest.Email)
	}
	if len(dest.PushTokens) == 0 {
		t.Fatalf("expected at least one placeholder push token")
	}
}

func TestStaticDirectory_ResolveUsesConfiguredDomain(t *testing.T) {
	dir := StaticDirectory{EmailDomain: "example.com"}
	dest, err := dir.Resolve(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(dest.Email, "@example.com") {
		t.Fatalf("got email %q, want it to end with @example.com", dest.Email)
	}
}

func TestStaticDirectory_DifferentOrgsGetDifferentDestinations(t *testing.T) {
	dir := StaticDirectory{}
	a, _ := dir.Resolve(context.Background(), uuid.New())
	b, _ := dir.Resolve(context.Background(), uuid.New())

	if a.Email == b.Email {
		t.Fatalf("expected distinct organizations to resolve to distinct emails")
	}
}
