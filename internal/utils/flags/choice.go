package flags

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

const (
	choicePlaceholderPrefixConstant  = "<"
	choicePlaceholderSuffixConstant  = ">"
	choiceSeparatorConstant          = "|"
	choiceUsageEmptyTemplateConstant = "`%s`"
	choiceUsageFullTemplateConstant  = "`%s` %s"
	choiceInvalidTemplateConstant    = "%w %q (expected one of %s)"
	choiceListSeparatorConstant      = ", "
	choiceTypeNameConstant           = "choice"
)

// ErrInvalidChoice indicates a flag value outside the allowed choices.
var ErrInvalidChoice = errors.New("invalid value")

// FormatChoiceUsage builds a usage string where the default option is capitalized inside a placeholder.
func FormatChoiceUsage(defaultChoice string, choices []string, description string) string {
	placeholder := buildChoicePlaceholder(defaultChoice, choices)
	if len(strings.TrimSpace(description)) == 0 {
		return fmt.Sprintf(choiceUsageEmptyTemplateConstant, placeholder)
	}
	return fmt.Sprintf(choiceUsageFullTemplateConstant, placeholder, description)
}

// ChoiceValue is a pflag.Value restricted to a fixed set of case-insensitive choices.
type ChoiceValue struct {
	value   string
	choices []string
}

var _ pflag.Value = (*ChoiceValue)(nil)

// NewChoiceValue constructs a ChoiceValue holding defaultChoice.
func NewChoiceValue(defaultChoice string, choices []string) *ChoiceValue {
	return &ChoiceValue{value: strings.ToLower(strings.TrimSpace(defaultChoice)), choices: normalizeChoices(choices)}
}

// AddChoiceFlag registers a choice flag on flagSet and returns its value holder.
func AddChoiceFlag(flagSet *pflag.FlagSet, name string, defaultChoice string, choices []string, description string) *ChoiceValue {
	value := NewChoiceValue(defaultChoice, choices)
	if flagSet == nil || len(name) == 0 {
		return value
	}
	flagSet.Var(value, name, FormatChoiceUsage(defaultChoice, choices, description))
	return value
}

// String returns the selected choice.
func (choice *ChoiceValue) String() string {
	if choice == nil {
		return ""
	}
	return choice.value
}

// Set validates and stores a new choice.
func (choice *ChoiceValue) Set(raw string) error {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	for _, candidate := range choice.choices {
		if candidate == normalized {
			choice.value = normalized
			return nil
		}
	}
	return fmt.Errorf(choiceInvalidTemplateConstant, ErrInvalidChoice, raw, strings.Join(choice.choices, choiceListSeparatorConstant))
}

// Type names the flag value kind in help output.
func (choice *ChoiceValue) Type() string {
	return choiceTypeNameConstant
}

func buildChoicePlaceholder(defaultChoice string, choices []string) string {
	return choicePlaceholderPrefixConstant + strings.Join(highlightDefaultChoice(defaultChoice, choices), choiceSeparatorConstant) + choicePlaceholderSuffixConstant
}

func normalizeChoices(choices []string) []string {
	normalized := make([]string, 0, len(choices))
	seen := make(map[string]struct{}, len(choices))
	for _, choice := range choices {
		candidate := strings.ToLower(strings.TrimSpace(choice))
		if len(candidate) == 0 {
			continue
		}
		if _, exists := seen[candidate]; exists {
			continue
		}
		seen[candidate] = struct{}{}
		normalized = append(normalized, candidate)
	}
	return normalized
}

func highlightDefaultChoice(defaultChoice string, choices []string) []string {
	normalizedDefault := strings.ToLower(strings.TrimSpace(defaultChoice))
	highlighted := normalizeChoices(choices)
	for index, choice := range highlighted {
		if choice == normalizedDefault {
			highlighted[index] = strings.ToUpper(choice)
		}
	}
	return highlighted
}
