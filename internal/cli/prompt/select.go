package prompt

import (
	"github.com/manifoldco/promptui"
)

// SelectOption is one entry in a selection list. Description, when
// set, is shown below the list for the highlighted entry.
type SelectOption struct {
	Label       string
	Value       string
	Description string
}

// Select prompts for one of options and returns its Value.
func Select(label string, options []SelectOption) (string, error) {
	sel := promptui.Select{
		Label:     label,
		Items:     options,
		Templates: optionTemplates(options),
		Size:      10,
	}

	i, _, err := sel.Run()
	if err != nil {
		return "", wrapError(err)
	}
	return options[i].Value, nil
}

// SelectString prompts for one of items and returns it.
func SelectString(label string, items []string) (string, error) {
	options := make([]SelectOption, len(items))
	for i, item := range items {
		options[i] = SelectOption{Label: item, Value: item}
	}
	return Select(label, options)
}

// optionTemplates renders the highlighted row with a cursor and, when
// any option carries a description, a detail line under the list.
func optionTemplates(options []SelectOption) *promptui.SelectTemplates {
	t := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ .Label | cyan }}",
		Inactive: "  {{ .Label }}",
		Selected: `{{ "✔" | green }} {{ .Label }}`,
	}
	for _, opt := range options {
		if opt.Description != "" {
			t.Details = "\n{{ .Description | faint }}"
			break
		}
	}
	return t
}
