package flags_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/togglekit/togglekit-go/flagengine/flags"
)

func TestValueRoundTrip(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   flags.Value
		json string
	}{
		{"bool", flags.NewBool(true), `true`},
		{"string", flags.NewString("dark"), `"dark"`},
		{"number", flags.NewNumber(2.5), `2.5`},
		{"json object", flags.NewJSON(json.RawMessage(`{"max":3}`)), `{"max":3}`},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			data, err := json.Marshal(c.in)
			require.NoError(t, err)
			assert.JSONEq(t, c.json, string(data))

			var out flags.Value
			require.NoError(t, json.Unmarshal(data, &out))
			assert.True(t, c.in.Equal(out), "expected %s, got %s", c.in, out)
		})
	}
}

func TestValueUnmarshalSelectsVariant(t *testing.T) {
	t.Parallel()
	var v flags.Value

	require.NoError(t, json.Unmarshal([]byte(`false`), &v))
	assert.Equal(t, flags.Boolean, v.KindOf())

	require.NoError(t, json.Unmarshal([]byte(`7`), &v))
	assert.Equal(t, flags.Number, v.KindOf())

	require.NoError(t, json.Unmarshal([]byte(`["a","b"]`), &v))
	assert.Equal(t, flags.JSON, v.KindOf())

	require.NoError(t, json.Unmarshal([]byte(`null`), &v))
	assert.True(t, v.IsZero())
}

func TestZeroOf(t *testing.T) {
	t.Parallel()
	assert.False(t, flags.ZeroOf(flags.Boolean).AsBool())
	assert.Equal(t, "", *flags.ZeroOf(flags.String).Str)
	assert.Equal(t, 0.0, *flags.ZeroOf(flags.Number).Num)
	assert.Equal(t, "null", string(flags.ZeroOf(flags.JSON).Raw))
}

func TestMetadataUnmarshalTolerantTimestamps(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		doc  string
		year int
	}{
		{"rfc3339", `{"created_at":"2026-08-30T10:00:00Z","updated_at":"2026-08-30T10:00:00Z"}`, 2026},
		{"date only", `{"created_at":"2025-02-14","updated_at":"2025-02-14"}`, 2025},
		{"us format", `{"created_at":"3/1/2024 10:00:00 AM","updated_at":"3/1/2024 10:00:00 AM"}`, 2024},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			var m flags.Metadata
			require.NoError(t, json.Unmarshal([]byte(c.doc), &m))
			assert.Equal(t, c.year, m.CreatedAt.Year())
		})
	}

	t.Run("garbage timestamp degrades to zero", func(t *testing.T) {
		t.Parallel()
		var m flags.Metadata
		require.NoError(t, json.Unmarshal([]byte(`{"created_at":"not a date"}`), &m))
		assert.True(t, m.CreatedAt.IsZero())
	})
}

func TestCloneIsIndependent(t *testing.T) {
	t.Parallel()
	original := &flags.FeatureFlag{
		Key:               "experiment.search",
		Name:              "Search experiment",
		Kind:              flags.Boolean,
		DefaultValue:      flags.NewBool(true),
		Enabled:           true,
		Environments:      map[string]flags.Value{"production": flags.NewBool(false)},
		RolloutPercentage: flags.Percentage(30),
		Metadata:          flags.Metadata{Tags: []string{"beta"}, CreatedAt: time.Now()},
	}

	clone := original.Clone()
	clone.Environments["staging"] = flags.NewBool(true)
	*clone.RolloutPercentage = 90
	clone.Metadata.Tags[0] = "released"

	assert.NotContains(t, original.Environments, "staging")
	assert.Equal(t, 30, *original.RolloutPercentage)
	assert.Equal(t, "beta", original.Metadata.Tags[0])
}
