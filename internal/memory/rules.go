// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package memory extracts profile facts from free-text user messages.
//
// Extraction is an ordered table of independent rules. Every rule is evaluated
// on every call; when several rules match the same field, the last one wins.
package memory

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/Tri-Phung/chatbot-project/internal/model"
)

// =============================================================================
// RULE TYPES
// =============================================================================

// Input is a message prepared for matching.
type Input struct {
	// Text is the NFC-normalized message in its original case.
	Text string
	// Lower is Text lower-cased.
	Lower string
}

// Rule sets Field to the value returned by Match when it matches.
type Rule struct {
	Field model.Field
	Match func(in Input) (value string, ok bool)
}

// Change records one field update made by Apply.
type Change struct {
	Field model.Field
	Value string
}

// toLower lower-cases s. A cases.Caser is stateful, so one is built per call.
func toLower(s string) string {
	return cases.Lower(language.Und).String(s)
}

// Prepare normalizes text for matching.
// Composed and decomposed Vietnamese diacritics compare equal after NFC.
func Prepare(text string) Input {
	n := norm.NFC.String(text)
	return Input{Text: n, Lower: toLower(n)}
}

// =============================================================================
// RULE CONSTRUCTORS
// =============================================================================

// Contains matches when the lower-cased text contains any needle.
func Contains(field model.Field, value string, needles ...string) Rule {
	prepared := make([]string, len(needles))
	for i, n := range needles {
		prepared[i] = toLower(norm.NFC.String(n))
	}
	return Rule{
		Field: field,
		Match: func(in Input) (string, bool) {
			for _, n := range prepared {
				if strings.Contains(in.Lower, n) {
					return value, true
				}
			}
			return "", false
		},
	}
}

// Capture matches re against the original-case text and formats the first
// capture group of the first match with format.
func Capture(field model.Field, re *regexp.Regexp, format string) Rule {
	return Rule{
		Field: field,
		Match: func(in Input) (string, bool) {
			m := re.FindStringSubmatch(in.Text)
			if m == nil {
				return "", false
			}
			return fmt.Sprintf(format, m[1]), true
		},
	}
}

// =============================================================================
// DEFAULT RULES
// =============================================================================

// \s is ASCII-only in RE2; \p{Zs} adds the no-break space some keyboards
// insert between a number and its unit.
var (
	scheduleRe = regexp.MustCompile(`(?i)(\d+)[\s\p{Zs}]*(buổi|ngày)`)
	bodyRe     = regexp.MustCompile(`(?i)(\d{2,3})[\s\p{Zs}]?kg`)
)

// DefaultRules is the extraction vocabulary, in evaluation order.
var DefaultRules = []Rule{
	Contains(model.FieldGoal, "tăng cơ", "tăng cơ"),
	Contains(model.FieldGoal, "giảm mỡ", "giảm mỡ", "giảm cân"),
	Contains(model.FieldGoal, "giữ form", "giữ form", "giữ dáng"),

	Contains(model.FieldExperience, "mới tập", "mới tập", "beginner"),
	Contains(model.FieldExperience, "trung cấp", "trung cấp", "intermediate"),
	Contains(model.FieldExperience, "nâng cao", "nâng cao", "advanced"),

	Contains(model.FieldEquipment, "tự do", "không dụng cụ", "bodyweight"),
	Contains(model.FieldEquipment, "phòng gym", "phòng gym", "gym"),

	Capture(model.FieldSchedule, scheduleRe, "%s buổi/tuần"),

	Contains(model.FieldDiet, "ăn chay", "ăn chay"),
	Contains(model.FieldDiet, "ít carb", "ít carb"),

	Contains(model.FieldLimitations, "có hạn chế", "đau", "chấn thương"),

	Capture(model.FieldBody, bodyRe, "%s kg"),
}

// =============================================================================
// EXTRACTOR
// =============================================================================

// Extractor applies an ordered rule table to a profile.
type Extractor struct {
	rules []Rule
}

// NewExtractor creates an extractor over rules. A nil table means DefaultRules.
func NewExtractor(rules []Rule) *Extractor {
	if rules == nil {
		rules = DefaultRules
	}
	return &Extractor{rules: rules}
}

// Apply runs every rule against text and writes matches into p.
// It returns the fields whose stored value changed, in rule order.
// Applying the same text twice leaves the profile as after the first call.
func (e *Extractor) Apply(p *model.Profile, text string) []Change {
	in := Prepare(text)

	// Resolve the winning value per field first so a field overwritten
	// twice in one call is reported once, with its final value.
	winners := make(map[model.Field]string)
	var order []model.Field
	for _, r := range e.rules {
		v, ok := r.Match(in)
		if !ok {
			continue
		}
		if _, seen := winners[r.Field]; !seen {
			order = append(order, r.Field)
		}
		winners[r.Field] = v
	}

	var changes []Change
	for _, f := range order {
		if p.Set(f, winners[f]) {
			changes = append(changes, Change{Field: f, Value: winners[f]})
		}
	}
	return changes
}

var defaultExtractor = NewExtractor(nil)

// Apply runs DefaultRules against text. See Extractor.Apply.
func Apply(p *model.Profile, text string) []Change {
	return defaultExtractor.Apply(p, text)
}
