package convention

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findSuffix(r *Registry, token string) *Rule {
	for i := range r.Suffixes() {
		if r.Suffixes()[i].Token == token {
			return &r.Suffixes()[i]
		}
	}
	return nil
}

func findPrefix(r *Registry, token string) *Rule {
	for i := range r.Prefixes() {
		if r.Prefixes()[i].Token == token {
			return &r.Prefixes()[i]
		}
	}
	return nil
}

func TestRegistry_DefaultSeeds(t *testing.T) {
	r := NewRegistryBuilder().Build()

	assert.NotEmpty(t, r.Prefixes())
	assert.NotEmpty(t, r.Suffixes())

	tests := []struct {
		name     string
		rule     *Rule
		template string
	}{
		{"Above prefix", findPrefix(r, "Above"), TemplateGreaterThan},
		{"Above suffix", findSuffix(r, "Above"), TemplateGreaterThan},
		{"Begin prefix only", findPrefix(r, "Begin"), TemplateGreaterThan},
		{"OlderThan suffix", findSuffix(r, "OlderThan"), TemplateGreaterThan},
		{"In suffix", findSuffix(r, "In"), TemplateIn},
		{"Ids suffix", findSuffix(r, "Ids"), TemplateIn},
		{"Between suffix", findSuffix(r, "Between"), TemplateBetween},
		{"Like suffix", findSuffix(r, "Like"), TemplateCaseInsensitiveLike},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.rule)
			assert.Equal(t, tt.template, tt.rule.Filter.Template)
		})
	}

	// Begin is prefix-only; it must not appear as a suffix rule.
	assert.Nil(t, findSuffix(r, "Begin"))
	// OlderThan is suffix-only.
	assert.Nil(t, findPrefix(r, "OlderThan"))
}

func TestRegistry_OrderIsDeterministic(t *testing.T) {
	// GreaterThanOrEqualTo must be registered before GreaterThan, so that
	// first-match-wins resolution never truncates the longer token.
	r := NewRegistryBuilder().Build()

	indexOf := func(rules []Rule, token string) int {
		for i, rule := range rules {
			if rule.Token == token {
				return i
			}
		}
		return -1
	}

	gte := indexOf(r.Suffixes(), "GreaterThanOrEqualTo")
	gt := indexOf(r.Suffixes(), "GreaterThan")
	require.GreaterOrEqual(t, gte, 0)
	require.GreaterOrEqual(t, gt, 0)
	assert.Less(t, gte, gt)

	lte := indexOf(r.Suffixes(), "LessThanOrEqualTo")
	lt := indexOf(r.Suffixes(), "LessThan")
	require.GreaterOrEqual(t, lte, 0)
	require.GreaterOrEqual(t, lt, 0)
	assert.Less(t, lt, lte)
}

func TestRegistry_StartsWithConventions(t *testing.T) {
	r := NewRegistryBuilder().Build()

	tests := []struct {
		token  string
		format string
	}{
		{"StartsWith", "%v%%"},
		{"Contains", "%%%v%%"},
		{"EndsWith", "%%%v"},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			rule := findSuffix(r, tt.token)
			require.NotNil(t, rule)
			assert.Equal(t, TemplateCaseInsensitiveLike, rule.Filter.Template)
			assert.Equal(t, tt.format, rule.Filter.ValueFormat)
		})
	}
}

func TestRegistry_CaseSensitiveLikeRewrite(t *testing.T) {
	r := NewRegistryBuilder().CaseSensitiveLike(true).Build()

	like := findSuffix(r, "Like")
	require.NotNil(t, like)
	assert.Equal(t, TemplateCaseSensitiveLike, like.Filter.Template)

	starts := findSuffix(r, "StartsWith")
	require.NotNil(t, starts)
	assert.Equal(t, TemplateCaseSensitiveLike, starts.Filter.Template)
	assert.Equal(t, "%v%%", starts.Filter.ValueFormat)

	for _, rule := range r.Suffixes() {
		assert.False(t, strings.Contains(rule.Filter.Template, "UPPER"),
			"token %q still case-insensitive", rule.Token)
	}
}

func TestRegistry_ExplicitRulesPrecedeSeeds(t *testing.T) {
	custom := &Filter{Template: "{Field} <> {Value}"}
	r := NewRegistryBuilder().
		AddSuffix("Above", custom).
		Build()

	// The explicit rule wins over the seeded Above rule.
	assert.Equal(t, "Above", r.Suffixes()[3].Token)
	assert.Equal(t, custom.Template, r.Suffixes()[3].Filter.Template)

	first := findSuffix(r, "Above")
	require.NotNil(t, first)
}

func TestRegistryBuilder_AddPattern(t *testing.T) {
	r := NewRegistryBuilder().
		Add("%Near%", "{Field} BETWEEN {Value1} AND {Value2}").
		Build()

	rule := findSuffix(r, "Near")
	require.NotNil(t, rule)
	assert.Equal(t, ValueStyleMultiple, rule.Filter.ValueStyle)
	assert.Equal(t, 2, rule.Filter.ValueArity)

	assert.NotNil(t, findPrefix(r, "Near"))
}

func TestFilter_InitDerivesStyle(t *testing.T) {
	tests := []struct {
		name  string
		f     Filter
		style ValueStyle
		arity int
	}{
		{"empty template", Filter{}, ValueStyleSingle, 0},
		{"single value", Filter{Template: TemplateGreaterThan}, ValueStyleSingle, 0},
		{"list", Filter{Template: TemplateIn}, ValueStyleList, 0},
		{"two slots", Filter{Template: TemplateBetween}, ValueStyleMultiple, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.f
			f.Init()
			assert.Equal(t, tt.style, f.ValueStyle)
			assert.Equal(t, tt.arity, f.ValueArity)
		})
	}
}

func TestFilter_CombinePrefersDeclaration(t *testing.T) {
	declared := &Filter{Term: TermEnsure, ValueFormat: "%v%%"}
	conv := &Filter{Template: TemplateCaseInsensitiveLike, Field: "Name"}

	merged := declared.Combine(conv)
	assert.Equal(t, TermEnsure, merged.Term)
	assert.Equal(t, "%v%%", merged.ValueFormat)
	assert.Equal(t, TemplateCaseInsensitiveLike, merged.Template)
	assert.Equal(t, "Name", merged.Field)
	assert.Equal(t, ValueStyleSingle, merged.ValueStyle)
}
