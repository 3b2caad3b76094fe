package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRef_UnmarshalConcrete(t *testing.T) {
	var r Ref
	require.NoError(t, json.Unmarshal([]byte(`"ocd-person/123"`), &r))
	assert.Equal(t, "ocd-person/123", r.ID)
	assert.False(t, r.IsLookup())
	assert.False(t, r.IsZero())
}

func TestRef_UnmarshalNull(t *testing.T) {
	var r Ref
	require.NoError(t, json.Unmarshal([]byte(`null`), &r))
	assert.True(t, r.IsZero())

	require.NoError(t, json.Unmarshal([]byte(`""`), &r))
	assert.True(t, r.IsZero())
}

func TestRef_UnmarshalLookup(t *testing.T) {
	var r Ref
	require.NoError(t, json.Unmarshal([]byte(`"~{\"classification\":\"upper\"}"`), &r))
	assert.True(t, r.IsLookup())
	assert.Equal(t, map[string]string{"classification": "upper"}, r.Lookup)
}

func TestRef_UnmarshalMalformedLookup(t *testing.T) {
	var r Ref
	assert.Error(t, json.Unmarshal([]byte(`"~not json"`), &r))
	assert.Error(t, json.Unmarshal([]byte(`"~{}"`), &r))
	assert.Error(t, json.Unmarshal([]byte(`42`), &r))
}

func TestRef_MarshalRoundTrip(t *testing.T) {
	for _, r := range []Ref{
		{},
		ConcreteRef("ocd-organization/abc"),
		LookupRef(map[string]string{"classification": "lower", "name": "House"}),
	} {
		raw, err := json.Marshal(r)
		require.NoError(t, err)
		var back Ref
		require.NoError(t, json.Unmarshal(raw, &back))
		assert.Equal(t, r, back)
	}
}

func TestRef_String(t *testing.T) {
	assert.Equal(t, "<nil>", Ref{}.String())
	assert.Equal(t, "ocd-person/1", ConcreteRef("ocd-person/1").String())
	// Keys render sorted so messages are stable.
	r := LookupRef(map[string]string{"name": "Senate", "classification": "upper"})
	assert.Equal(t, "~{classification=upper, name=Senate}", r.String())
}
