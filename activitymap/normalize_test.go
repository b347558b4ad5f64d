package activitymap_test

import (
	"context"
	"testing"
	"time"

	wsoauth "github.com/WikibaseSolutions/WSOAuth"
	"github.com/WikibaseSolutions/WSOAuth/activitymap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaults(t *testing.T) {
	occurred := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	event := wsoauth.ActivityEvent{
		EventType:  wsoauth.ActivityEventOAuthLogin,
		Actor:      wsoauth.ActorRef{ID: "mediawiki", Type: "oauth"},
		UserID:     42,
		Username:   "Alice",
		Metadata:   map[string]any{"provider": "mediawiki"},
		OccurredAt: occurred,
	}

	got := activitymap.Normalize(event)

	assert.Equal(t, "mediawiki", got.ActorID)
	assert.Equal(t, "auth.oauth.login", got.Verb)
	assert.Equal(t, "user", got.ObjectType)
	assert.Equal(t, "42", got.ObjectID)
	assert.Equal(t, "oauth", got.Channel)
	assert.Equal(t, occurred, got.OccurredAt)
	assert.Equal(t, "oauth", got.Metadata[activitymap.MetadataKeyActorType])
	assert.Equal(t, "Alice", got.Metadata[activitymap.MetadataKeyUsername])
	assert.Equal(t, "mediawiki", got.Metadata["provider"])
}

func TestNormalizeActorFallbacks(t *testing.T) {
	// No actor id: the affected user becomes the actor.
	got := activitymap.Normalize(wsoauth.ActivityEvent{
		EventType: wsoauth.ActivityEventUserMigrated,
		UserID:    7,
	})
	assert.Equal(t, "7", got.ActorID)

	// Neither actor nor user id: the configured fallback applies.
	got = activitymap.Normalize(wsoauth.ActivityEvent{
		EventType: wsoauth.ActivityEventOAuthFailure,
	})
	assert.Equal(t, "system", got.ActorID)

	got = activitymap.Normalize(wsoauth.ActivityEvent{
		EventType: wsoauth.ActivityEventOAuthFailure,
	}, activitymap.WithActorFallback("broker"))
	assert.Equal(t, "broker", got.ActorID)
}

func TestNormalizeObjectIDFallsBackToUsername(t *testing.T) {
	got := activitymap.Normalize(wsoauth.ActivityEvent{
		EventType: wsoauth.ActivityEventOAuthLogin,
		Username:  "Alice",
	})
	assert.Equal(t, "Alice", got.ObjectID)
}

func TestNormalizeOptions(t *testing.T) {
	event := wsoauth.ActivityEvent{
		EventType: wsoauth.ActivityEventUsurpation,
		UserID:    42,
	}

	got := activitymap.Normalize(event,
		activitymap.WithDefaultChannel("audit"),
		activitymap.WithDefaultObjectType("account"),
		activitymap.WithObjectIDResolver(func(e wsoauth.ActivityEvent) string {
			return "account:42"
		}),
	)

	assert.Equal(t, "audit", got.Channel)
	assert.Equal(t, "account", got.ObjectType)
	assert.Equal(t, "account:42", got.ObjectID)
}

func TestNormalizeZeroTime(t *testing.T) {
	got := activitymap.Normalize(wsoauth.ActivityEvent{EventType: wsoauth.ActivityEventOAuthLogin})
	assert.False(t, got.OccurredAt.IsZero())
}

func TestNormalizeDoesNotMutateEventMetadata(t *testing.T) {
	event := wsoauth.ActivityEvent{
		EventType: wsoauth.ActivityEventOAuthLogin,
		Actor:     wsoauth.ActorRef{Type: "oauth"},
		Metadata:  map[string]any{"provider": "github"},
	}

	activitymap.Normalize(event)
	assert.NotContains(t, event.Metadata, activitymap.MetadataKeyActorType)
}

func TestSink(t *testing.T) {
	var entries []activitymap.Normalized
	sink := activitymap.Sink(func(ctx context.Context, entry activitymap.Normalized) error {
		entries = append(entries, entry)
		return nil
	}, activitymap.WithDefaultChannel("audit"))

	err := sink.Record(context.Background(), wsoauth.ActivityEvent{
		EventType: wsoauth.ActivityEventOAuthLogin,
		UserID:    7,
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "auth.oauth.login", entries[0].Verb)
	assert.Equal(t, "audit", entries[0].Channel)
}

func TestSinkNilRecorder(t *testing.T) {
	sink := activitymap.Sink(nil)
	assert.NoError(t, sink.Record(context.Background(), wsoauth.ActivityEvent{}))
}
