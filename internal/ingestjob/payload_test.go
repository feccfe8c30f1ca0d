package ingestjob

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseExtractsGitURL(t *testing.T) {
	p := Parse([]byte(`{"git_url": "https://github.com/example/repo.git", "branch": "main"}`))
	require.Equal(t, "https://github.com/example/repo.git", p.GitURL)
	require.Equal(t, "main", p.Branch)
}

func TestParseMalformedBodyReturnsZeroValue(t *testing.T) {
	p := Parse([]byte(`not json`))
	require.Empty(t, p.GitURL)
}

func TestMergeSettingsShallowReplacesTopLevelKeys(t *testing.T) {
	base := map[string]any{"scope": "full", "branch": "main"}
	overrides := map[string]any{"branch": "feature"}

	merged := MergeSettings(base, overrides)
	require.Equal(t, map[string]any{"scope": "full", "branch": "feature"}, merged)
}

func TestMergeSettingsDeepMergesOptionsKey(t *testing.T) {
	base := map[string]any{
		"scope": "full",
		"options": map[string]any{
			"include_tests": true,
			"max_depth":     float64(5),
		},
	}
	overrides := map[string]any{
		"options": map[string]any{
			"max_depth": float64(10),
		},
	}

	merged := MergeSettings(base, overrides)
	require.Equal(t, map[string]any{
		"scope": "full",
		"options": map[string]any{
			"include_tests": true,
			"max_depth":     float64(10),
		},
	}, merged)
}

func TestMergeSettingsWithNilOverridesReturnsBaseUnchanged(t *testing.T) {
	base := map[string]any{"scope": "full"}
	require.Equal(t, base, MergeSettings(base, nil))
}

func TestMergeSettingsNonObjectOverridesWinsOutright(t *testing.T) {
	base := map[string]any{"scope": "full"}
	overrides := "replace-everything"
	require.Equal(t, overrides, MergeSettings(base, overrides))
}

func TestMergeOptionsWithNoExistingOptionsUsesOverridesDirectly(t *testing.T) {
	base := map[string]any{"scope": "full"}
	overrides := map[string]any{"options": map[string]any{"fresh": true}}

	merged := MergeSettings(base, overrides)
	require.Equal(t, map[string]any{"fresh": true}, merged.(map[string]any)["options"])
}
