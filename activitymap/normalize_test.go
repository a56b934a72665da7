package activitymap_test

import (
	"testing"
	"time"

	auth "github.com/rideshare/go-rideshare-auth"
	"github.com/rideshare/go-rideshare-auth/activitymap"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := auth.ActivityEvent{
		EventType: auth.ActivityEventPasswordResetFailure,
		AccountID: "account-100",
		Email:     "rider@example.com",
		Failure:   auth.FailureTokenInvalid,
		Metadata: map[string]any{
			"ticket": "SEC-204",
		},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	if out.ActorID != "account-100" {
		t.Fatalf("expected actor_id account-100, got %q", out.ActorID)
	}
	if out.Verb != string(auth.ActivityEventPasswordResetFailure) {
		t.Fatalf("expected verb %q, got %q", auth.ActivityEventPasswordResetFailure, out.Verb)
	}
	if out.ObjectType != "account" {
		t.Fatalf("expected object_type account, got %q", out.ObjectType)
	}
	if out.ObjectID != "account-100" {
		t.Fatalf("expected object_id account-100, got %q", out.ObjectID)
	}
	if out.Channel != "auth" {
		t.Fatalf("expected channel auth, got %q", out.Channel)
	}
	if !out.OccurredAt.Equal(ts) {
		t.Fatalf("expected occurred_at %v, got %v", ts, out.OccurredAt)
	}

	if out.Metadata["ticket"] != "SEC-204" {
		t.Fatalf("expected metadata ticket SEC-204, got %#v", out.Metadata["ticket"])
	}
	if out.Metadata[activitymap.MetadataKeyEmail] != "rider@example.com" {
		t.Fatalf("expected metadata email, got %#v", out.Metadata[activitymap.MetadataKeyEmail])
	}
	if out.Metadata[activitymap.MetadataKeyFailure] != string(auth.FailureTokenInvalid) {
		t.Fatalf("expected metadata failure TOKEN_INVALID, got %#v", out.Metadata[activitymap.MetadataKeyFailure])
	}

	if len(event.Metadata) != 1 {
		t.Fatalf("expected source metadata to remain unchanged, got %+v", event.Metadata)
	}
}

func TestNormalizeOptionOverrides(t *testing.T) {
	t.Parallel()

	event := auth.ActivityEvent{
		EventType: auth.ActivityEventPasswordResetRequested,
		AccountID: "account-200",
		Email:     "rider@example.com",
		Metadata: map[string]any{
			"reset_id":                   "reset-1",
			activitymap.MetadataKeyEmail: "existing@example.com",
		},
	}

	out := activitymap.Normalize(
		event,
		activitymap.WithDefaultChannel("security"),
		activitymap.WithDefaultObjectType("credential"),
		activitymap.WithObjectIDResolver(func(e auth.ActivityEvent) string {
			if v, ok := e.Metadata["reset_id"].(string); ok {
				return v
			}
			return ""
		}),
	)

	if out.Channel != "security" {
		t.Fatalf("expected channel security, got %q", out.Channel)
	}
	if out.ObjectType != "credential" {
		t.Fatalf("expected object_type credential, got %q", out.ObjectType)
	}
	if out.ObjectID != "reset-1" {
		t.Fatalf("expected object_id reset-1, got %q", out.ObjectID)
	}
	if out.Metadata[activitymap.MetadataKeyEmail] != "existing@example.com" {
		t.Fatalf("expected existing email preserved, got %#v", out.Metadata[activitymap.MetadataKeyEmail])
	}
	if _, ok := out.Metadata[activitymap.MetadataKeyFailure]; ok {
		t.Fatalf("expected no failure key for successful events")
	}
	if out.OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be set when input is zero")
	}
}

func TestNormalizeActorFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		event  auth.ActivityEvent
		opts   []activitymap.Option
		expect string
	}{
		{
			name:   "uses account id when present",
			event:  auth.ActivityEvent{AccountID: "account-1"},
			expect: "account-1",
		},
		{
			name:   "uses default fallback when account missing",
			event:  auth.ActivityEvent{Email: "unknown@example.com"},
			expect: "anonymous",
		},
		{
			name:   "uses configured fallback when account missing",
			event:  auth.ActivityEvent{},
			opts:   []activitymap.Option{activitymap.WithActorFallback("job")},
			expect: "job",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out := activitymap.Normalize(tc.event, tc.opts...)
			if out.ActorID != tc.expect {
				t.Fatalf("expected actor_id %q, got %q", tc.expect, out.ActorID)
			}
		})
	}
}

func TestNormalizeNilMetadataStaysNil(t *testing.T) {
	t.Parallel()

	out := activitymap.Normalize(auth.ActivityEvent{EventType: auth.ActivityEventLogout, AccountID: "a"})
	if out.Metadata != nil {
		t.Fatalf("expected nil metadata, got %#v", out.Metadata)
	}
}
