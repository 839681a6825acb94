package guard

import (
	"fmt"
	"regexp"
)

// Rule declares that operations matching Pattern are project-scoped
// and carry the given capability tag. Rules are declarative so they
// can be tested in isolation instead of living as scattered
// conditionals at call sites.
type Rule struct {
	Pattern    string `koanf:"pattern"`
	Capability string `koanf:"capability"`
}

// DefaultRules guards the operation families that documented incidents
// came from: anything that writes, deploys, or destroys.
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: `(?i)^(deploy|release|publish)`, Capability: "deploy"},
		{Pattern: `(?i)^(write|edit|create|scaffold|generate)`, Capability: "write"},
		{Pattern: `(?i)^(delete|remove|drop|destroy|purge)`, Capability: "destroy"},
		{Pattern: `(?i)^(migrate|sync|push)`, Capability: "mutate"},
	}
}

type compiledRule struct {
	re         *regexp.Regexp
	capability string
}

// RuleSet is a compiled, ordered rule list.
type RuleSet struct {
	rules []compiledRule
}

// CompileRules compiles a rule list. An invalid pattern is a
// configuration error, not something to skip silently.
func CompileRules(rules []Rule) (*RuleSet, error) {
	rs := &RuleSet{rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid guard rule pattern %q: %w", r.Pattern, err)
		}
		rs.rules = append(rs.rules, compiledRule{re: re, capability: r.Capability})
	}
	return rs, nil
}

// Match returns the capability tag of the first rule matching the
// operation name. An empty rule set guards everything: scoping down is
// opt-in, failing open is not.
func (rs *RuleSet) Match(operation string) (capability string, guarded bool) {
	if rs == nil || len(rs.rules) == 0 {
		return "", true
	}
	for _, r := range rs.rules {
		if r.re.MatchString(operation) {
			return r.capability, true
		}
	}
	return "", false
}
