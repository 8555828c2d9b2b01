/*
 * Copyright 2022 The Gremlins Authors
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

// Package transform stands in for the out-of-core Code Transformer
// collaborator (§1, §4.5): "given an original class image and a
// mutation identifier, returns the transformed image." The real
// byte-level transformer is explicitly out of scope; this package
// supplies the minimal Go-source text splice needed to exercise the
// rest of the pipeline end to end, following the same token-swap idiom
// the teacher's own mutator definitions use (operator text in, operator
// text out), just applied as a line-level string splice rather than an
// AST rewrite.
package transform

import (
	"bytes"
	"fmt"

	"github.com/mutmatrix/mutmatrix/internal/mutation"
)

// ErrNoMatch is returned when a mutation's mutator tag has no rule, or
// the target line doesn't contain the rule's token: the minion worker
// treats this the same as a verifier rejection, assigning NON_VIABLE.
var ErrNoMatch = fmt.Errorf("transform: no matching token on target line")

// Rule is a single token substitution: replace the first occurrence of
// From with To on the mutation's line.
type Rule struct {
	From string
	To   string
}

// Transformer produces the mutated image of a source file for one
// mutation.
type Transformer interface {
	Transform(original []byte, id mutation.ID) ([]byte, error)
}

// LineSplice is a Transformer keyed by mutator tag: it looks up id's
// MutatorTag in Rules and applies that single substitution to id's Line.
type LineSplice struct {
	Rules map[string]Rule
}

// NewLineSplice builds a LineSplice pre-loaded with DefaultRules.
func NewLineSplice() *LineSplice {
	return &LineSplice{Rules: DefaultRules()}
}

// DefaultRules is a small, illustrative set of operator-swap rules,
// named after the mutator families spec §3 refers to generically as
// "mutator tag".
func DefaultRules() map[string]Rule {
	return map[string]Rule{
		"ARITHMETIC_BASE_ADD":        {From: "+", To: "-"},
		"ARITHMETIC_BASE_SUB":        {From: "-", To: "+"},
		"CONDITIONALS_BOUNDARY_LT":   {From: "<", To: "<="},
		"CONDITIONALS_BOUNDARY_GT":   {From: ">", To: ">="},
		"CONDITIONALS_NEGATION_EQ":   {From: "==", To: "!="},
		"CONDITIONALS_NEGATION_NEQ":  {From: "!=", To: "=="},
		"INVERT_NEGATIVES":           {From: "-", To: ""},
		"REMOVE_CONDITIONALS_TRUE":   {From: "false", To: "true"},
		"REMOVE_CONDITIONALS_FALSE":  {From: "true", To: "false"},
		"CONSTANT_REPLACEMENT_ZERO":  {From: "0", To: "1"},
	}
}

// Transform rewrites the single line id.Line of original per the rule
// registered for id.MutatorTag, returning ErrNoMatch if there is no rule
// or the line doesn't contain the rule's token.
func (l *LineSplice) Transform(original []byte, id mutation.ID) ([]byte, error) {
	rule, ok := l.Rules[id.MutatorTag]
	if !ok {
		return nil, fmt.Errorf("%w: unknown mutator tag %q", ErrNoMatch, id.MutatorTag)
	}

	lines := bytes.Split(original, []byte("\n"))
	idx := id.Line - 1
	if idx < 0 || idx >= len(lines) {
		return nil, fmt.Errorf("%w: line %d out of range", ErrNoMatch, id.Line)
	}

	target := lines[idx]
	pos := bytes.Index(target, []byte(rule.From))
	if pos < 0 {
		return nil, fmt.Errorf("%w: line %d has no %q", ErrNoMatch, id.Line, rule.From)
	}

	replaced := make([]byte, 0, len(target)+len(rule.To)-len(rule.From))
	replaced = append(replaced, target[:pos]...)
	replaced = append(replaced, rule.To...)
	replaced = append(replaced, target[pos+len(rule.From):]...)
	lines[idx] = replaced

	return bytes.Join(lines, []byte("\n")), nil
}
