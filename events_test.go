package togglekit_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	togglekit "github.com/togglekit/togglekit-go"
	"github.com/togglekit/togglekit-go/flagengine/flags"
)

func collectEvents(ch <-chan togglekit.ChangeEvent, n int) []togglekit.ChangeEvent {
	events := make([]togglekit.ChangeEvent, 0, n)
	timeout := time.After(2 * time.Second)
	for len(events) < n {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			return events
		}
	}
	return events
}

func TestSubscriberReceivesMutationEvents(t *testing.T) {
	t.Parallel()
	engine := togglekit.New()
	defer engine.Close()

	events, cancel := engine.Subscribe()
	defer cancel()

	require.NoError(t, engine.RegisterFlag(boolFlag("ev.flag", true)))
	require.NoError(t, engine.SetUserOverride("u1", "ev.flag", flags.NewBool(false)))
	engine.UnregisterFlag("ev.flag")

	got := collectEvents(events, 3)
	require.Len(t, got, 3)
	assert.Equal(t, togglekit.ChangeFlagRegistered, got[0].Type)
	assert.Equal(t, togglekit.ChangeOverrideSet, got[1].Type)
	assert.Equal(t, togglekit.ChangeFlagUnregistered, got[2].Type)
	for _, ev := range got {
		assert.NotEmpty(t, ev.ID)
		assert.False(t, ev.Timestamp.IsZero())
	}
	assert.Equal(t, "ev.flag", got[0].FlagKey)
}

func TestPublishNeverBlocksMutations(t *testing.T) {
	t.Parallel()
	engine := togglekit.New()
	defer engine.Close()

	// Subscribe and never read: mutations must still complete promptly.
	_, cancel := engine.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			name := "spam"
			_ = engine.RegisterFlag(boolFlag("spam."+name+string(rune('a'+i%26)), true))
			enabled := i%2 == 0
			_ = engine.UpdateFlag("spam."+name+string(rune('a'+i%26)), togglekit.FlagPatch{Enabled: &enabled})
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("mutations blocked on a slow subscriber")
	}
}

func TestCancelledSubscriptionStopsDelivery(t *testing.T) {
	t.Parallel()
	engine := togglekit.New()
	defer engine.Close()

	events, cancel := engine.Subscribe()
	cancel()

	require.NoError(t, engine.RegisterFlag(boolFlag("after.cancel", true)))

	_, open := <-events
	assert.False(t, open, "channel should be closed after cancel")
}

func TestCloseClosesSubscriptions(t *testing.T) {
	t.Parallel()
	engine := togglekit.New()
	events, _ := engine.Subscribe()
	engine.Close()

	_, open := <-events
	assert.False(t, open)
}
