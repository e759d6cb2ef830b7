package domain

// Ruleset is an ordered list of compiled Rules plus the entries that failed
// validation, produced by the Rules Repository and swapped atomically into
// the Transformation Engine.
type Ruleset struct {
	Rules        []Rule
	InvalidRules []InvalidRule
}

// ByName returns the rule with the given name, if present.
func (rs *Ruleset) ByName(name string) (*Rule, bool) {
	for i := range rs.Rules {
		if rs.Rules[i].Name == name {
			return &rs.Rules[i], true
		}
	}
	return nil, false
}

// ParameterDefinition describes a rule's remote-parameter shape, consumed by
// the Desktop Client for parameter registration.
type ParameterDefinition struct {
	Name    string
	Min     float64
	Max     float64
	Default float64
}

// ParameterDefinitions derives the registration list for every rule in the
// set.
func (rs *Ruleset) ParameterDefinitions() []ParameterDefinition {
	defs := make([]ParameterDefinition, 0, len(rs.Rules))
	for _, r := range rs.Rules {
		defs = append(defs, ParameterDefinition{
			Name:    r.Name,
			Min:     r.Min,
			Max:     r.Max,
			Default: r.DefaultValue,
		})
	}
	return defs
}

// RulesetLoadReport is the result of a single Rules Repository load() call.
type RulesetLoadReport struct {
	ValidRules       []Rule
	InvalidRules     []InvalidRule
	ValidationErrors []string
	LoadedFromCache  bool
	LoadError        error
}

// Ruleset builds the Ruleset value carried forward to the engine.
func (r *RulesetLoadReport) Ruleset() Ruleset {
	return Ruleset{Rules: r.ValidRules, InvalidRules: r.InvalidRules}
}
