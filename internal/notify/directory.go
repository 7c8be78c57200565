package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Directory resolves an organization's notification destinations. Spec
// §1's Non-goals put organization/invitation flows and any admin-facing
// recipient directory out of scope; the dispatcher still needs
// somewhere to send to, so Directory is the narrow seam a real
// deployment wires to its own contacts store.
type Directory interface {
	Resolve(ctx context.Context, orgID uuid.UUID) (Destinations, error)
}

// Destinations is everything one organization's escalation policy can
// address a message to.
type Destinations struct {
	Email      string
	Phone      string
	PushTokens []string
}

// StaticDirectory synthesizes destinations from the organization id
// itself, so the platform is runnable end to end without a contacts
// service. Real deployments supply their own Directory.
type StaticDirectory struct {
	EmailDomain string
}

func (d StaticDirectory) Resolve(_ context.Context, orgID uuid.UUID) (Destinations, error) {
	domain := d.EmailDomain
	if domain == "" {
		domain = "alerts.invalid"
	}
	return Destinations{
		Email:      fmt.Sprintf("org-%s@%s", orgID.String(), domain),
		Phone:      "+10000000000",
		PushTokens: []string{"org-" + orgID.String()},
	}, nil
}
