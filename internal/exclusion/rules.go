// Package exclusion is a mutation interceptor stage that drops mutations
// whose source file matches an operator-supplied regex, independent of
// the failing-line filter (§4.2). Adapted from the teacher's
// Rules/IsFileExcluded shape, generalized from filtering source files
// pre-mutation-generation to filtering mutation.Details post-generation,
// so it composes as an ordinary interceptor.Interceptor pipeline stage.
package exclusion

import (
	"fmt"
	"regexp"

	"github.com/spf13/viper"

	"github.com/mutmatrix/mutmatrix/internal/configuration"
	"github.com/mutmatrix/mutmatrix/internal/interceptor"
	"github.com/mutmatrix/mutmatrix/internal/mutation"
)

// Rules is a collection of compiled regex patterns matched against a
// mutation's source file path.
type Rules []*regexp.Regexp

// New builds Rules from the configured exclude-files patterns.
//
// viper.GetStringSlice is used directly rather than configuration.Get,
// because a []string loaded from a YAML config file round-trips through
// viper as []interface{}, which configuration.Get's generic type
// assertion can't coerce.
func New() (Rules, error) {
	var rules Rules

	flagValues := viper.GetStringSlice(configuration.RunExcludeFilesKey)
	for i, s := range flagValues {
		r, err := regexp.Compile(s)
		if err != nil {
			return nil, fmt.Errorf("error in exclude-files param value #%d: %w", i, err)
		}
		rules = append(rules, r)
	}

	return rules, nil
}

// IsFileExcluded reports whether path matches any of the rules.
func (r Rules) IsFileExcluded(path string) bool {
	if len(r) == 0 {
		return false
	}
	for _, rule := range r {
		if rule.MatchString(path) {
			return true
		}
	}

	return false
}

// Filter is the interceptor.Interceptor adapter around Rules: it narrows
// the mutation set to only those mutations whose file is not excluded.
type Filter struct {
	rules Rules
}

// NewFilter builds a Filter from an already-built Rules set.
func NewFilter(rules Rules) *Filter {
	return &Filter{rules: rules}
}

// Kind reports Filter as a narrowing stage.
func (*Filter) Kind() interceptor.Kind { return interceptor.Filter }

// Begin is a no-op: Rules is immutable once built.
func (*Filter) Begin(string) {}

// Intercept drops every mutation whose file matches an exclusion rule.
func (f *Filter) Intercept(mutations []mutation.Details) []mutation.Details {
	if len(f.rules) == 0 {
		return mutations
	}

	out := mutations[:0:0]
	for _, m := range mutations {
		if !f.rules.IsFileExcluded(m.File) {
			out = append(out, m)
		}
	}

	return out
}

// End is a no-op.
func (*Filter) End() {}
