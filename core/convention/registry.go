package convention

import "strings"

// MatchKind says which end of a parameter name a rule's token binds to.
type MatchKind int

const (
	MatchPrefix MatchKind = iota
	MatchSuffix
)

// Rule is one registered naming convention: when Token matches the start or
// end of an otherwise-unresolved parameter name, the remainder is retried as a
// field name and Filter supplies the predicate template.
type Rule struct {
	Match  MatchKind
	Token  string
	Filter *Filter
}

// Registry holds the prefix and suffix convention rules in registration
// order. Matching scans rules in that order and the first rule whose stripped
// remainder resolves to a field wins, so registration order is part of the
// registry's observable contract. A built Registry is immutable.
type Registry struct {
	prefixes []Rule
	suffixes []Rule
}

// Prefixes returns the prefix rules in registration order.
func (r *Registry) Prefixes() []Rule { return r.prefixes }

// Suffixes returns the suffix rules in registration order.
func (r *Registry) Suffixes() []Rule { return r.suffixes }

// seedConvention is one entry of the default operator table. Pattern uses "%"
// as the wildcard marker: a trailing "%" registers a prefix rule, a leading
// "%" registers a suffix rule, and both register both.
type seedConvention struct {
	pattern  string
	template string
}

// defaultConventions is the seeded operator table. The slice is ordered
// because resolution is first-match-wins; do not reorder entries without
// treating it as a behavior change.
var defaultConventions = []seedConvention{
	{"%Above%", TemplateGreaterThan},
	{"Begin%", TemplateGreaterThan},
	{"%Beyond%", TemplateGreaterThan},
	{"%Over%", TemplateGreaterThan},
	{"%OlderThan", TemplateGreaterThan},
	{"%After%", TemplateGreaterThan},
	{"OnOrAfter%", TemplateGreaterThanOrEqual},
	{"%From%", TemplateGreaterThanOrEqual},
	{"Since%", TemplateGreaterThanOrEqual},
	{"Start%", TemplateGreaterThanOrEqual},
	{"%Higher%", TemplateGreaterThanOrEqual},
	{">%", TemplateGreaterThanOrEqual},
	{"%>", TemplateGreaterThan},
	{"%!", TemplateNotEqual},

	{"%GreaterThanOrEqualTo%", TemplateGreaterThanOrEqual},
	{"%GreaterThan%", TemplateGreaterThan},
	{"%LessThan%", TemplateLessThan},
	{"%LessThanOrEqualTo%", TemplateLessThanOrEqual},
	{"%NotEqualTo", TemplateNotEqual},

	{"Behind%", TemplateLessThan},
	{"%Below%", TemplateLessThan},
	{"%Under%", TemplateLessThan},
	{"%Lower%", TemplateLessThan},
	{"%Before%", TemplateLessThan},
	{"%YoungerThan", TemplateLessThan},
	{"OnOrBefore%", TemplateLessThanOrEqual},
	{"End%", TemplateLessThanOrEqual},
	{"Stop%", TemplateLessThanOrEqual},
	{"To%", TemplateLessThanOrEqual},
	{"Until%", TemplateLessThanOrEqual},
	{"%<", TemplateLessThanOrEqual},
	{"<%", TemplateLessThan},

	{"%Like%", TemplateCaseInsensitiveLike},
	{"%In", TemplateIn},
	{"%Ids", TemplateIn},
	{"%Between%", TemplateBetween},
}

// RegistryBuilder assembles a Registry. Configuration is resolved as a single
// build step: flags such as case-sensitive LIKE rewrite the affected rules
// during Build, never afterwards.
type RegistryBuilder struct {
	caseSensitiveLike bool
	seeds             []seedConvention
	prefixes          []Rule
	suffixes          []Rule
}

// NewRegistryBuilder starts a builder seeded with the default operator table
// and the StartsWith/Contains/EndsWith suffix conventions.
func NewRegistryBuilder() *RegistryBuilder {
	b := &RegistryBuilder{seeds: defaultConventions}
	b.suffixes = append(b.suffixes,
		Rule{MatchSuffix, "StartsWith", &Filter{Template: TemplateCaseInsensitiveLike, ValueFormat: "%v%%"}},
		Rule{MatchSuffix, "Contains", &Filter{Template: TemplateCaseInsensitiveLike, ValueFormat: "%%%v%%"}},
		Rule{MatchSuffix, "EndsWith", &Filter{Template: TemplateCaseInsensitiveLike, ValueFormat: "%%%v"}},
	)
	return b
}

// CaseSensitiveLike rewrites every LIKE-family rule to the case-sensitive
// template during Build.
func (b *RegistryBuilder) CaseSensitiveLike(on bool) *RegistryBuilder {
	b.caseSensitiveLike = on
	return b
}

// Add registers an additional convention in the "%"-marker pattern syntax
// used by the seed table.
func (b *RegistryBuilder) Add(pattern, template string) *RegistryBuilder {
	b.seeds = append(b.seeds, seedConvention{pattern, template})
	return b
}

// AddPrefix registers an explicit prefix rule.
func (b *RegistryBuilder) AddPrefix(token string, f *Filter) *RegistryBuilder {
	b.prefixes = append(b.prefixes, Rule{MatchPrefix, token, f})
	return b
}

// AddSuffix registers an explicit suffix rule.
func (b *RegistryBuilder) AddSuffix(token string, f *Filter) *RegistryBuilder {
	b.suffixes = append(b.suffixes, Rule{MatchSuffix, token, f})
	return b
}

// Build resolves the seed table and any explicit rules into an immutable
// Registry. Every filter is initialized here so that value styles and arities
// are computed exactly once.
func (b *RegistryBuilder) Build() *Registry {
	r := &Registry{}
	r.prefixes = append(r.prefixes, b.rewrite(b.prefixes)...)
	r.suffixes = append(r.suffixes, b.rewrite(b.suffixes)...)

	for _, seed := range b.seeds {
		token := strings.Trim(seed.pattern, "%")
		template := seed.template
		if b.caseSensitiveLike && template == TemplateCaseInsensitiveLike {
			template = TemplateCaseSensitiveLike
		}
		if strings.HasSuffix(seed.pattern, "%") {
			r.prefixes = append(r.prefixes, Rule{MatchPrefix, token, (&Filter{Template: template}).Init()})
		}
		if strings.HasPrefix(seed.pattern, "%") {
			r.suffixes = append(r.suffixes, Rule{MatchSuffix, token, (&Filter{Template: template}).Init()})
		}
	}

	return r
}

// rewrite applies the case-sensitivity flag to explicitly registered rules
// without mutating the builder's copies, and initializes each filter.
func (b *RegistryBuilder) rewrite(rules []Rule) []Rule {
	out := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		f := *rule.Filter
		if b.caseSensitiveLike && f.Template == TemplateCaseInsensitiveLike {
			f.Template = TemplateCaseSensitiveLike
		}
		out = append(out, Rule{rule.Match, rule.Token, (&f).Init()})
	}
	return out
}
