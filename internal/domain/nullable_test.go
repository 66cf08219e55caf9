package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/decisionlog/internal/domain"
)

func TestOptionPatchDistinguishesNullFromAbsent(t *testing.T) {
	var absent domain.OptionPatch
	require.NoError(t, json.Unmarshal([]byte(`{}`), &absent))
	require.True(t, absent.Empty())

	var cleared domain.OptionPatch
	require.NoError(t, json.Unmarshal([]byte(`{"rating":null}`), &cleared))
	require.False(t, cleared.Empty())
	require.True(t, cleared.Rating.Set)
	require.Nil(t, cleared.Rating.Value)

	var rated domain.OptionPatch
	require.NoError(t, json.Unmarshal([]byte(`{"rating":4}`), &rated))
	require.Equal(t, domain.Some(4), rated.Rating)

	var bad domain.OptionPatch
	require.Error(t, json.Unmarshal([]byte(`{"rating":"four"}`), &bad))
}

func TestDecisionPatchClearsDescription(t *testing.T) {
	var patch domain.DecisionPatch
	require.NoError(t, json.Unmarshal([]byte(`{"description":null}`), &patch))
	require.Equal(t, domain.Null[string](), patch.Description)
	require.False(t, patch.Empty())

	out, err := json.Marshal(domain.DecisionPatch{Description: domain.Some("notes")})
	require.NoError(t, err)
	require.JSONEq(t, `{"description":"notes"}`, string(out))
}
