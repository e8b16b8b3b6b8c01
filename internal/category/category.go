// Package category holds the fixed set of task categories and their
// display metadata.
package category

// Style is the display metadata for a category.
type Style struct {
	Label      string
	Background string
	Text       string
	Icon       string

	// ANSI is the SGR color used in terminal output.
	ANSI string
}

// Default is the category preselected for new tasks.
const Default = "工作"

var registry = []Style{
	{Label: "工作", Background: "bg-blue-100", Text: "text-blue-600", Icon: "fas fa-briefcase", ANSI: "34"},
	{Label: "學習", Background: "bg-yellow-100", Text: "text-yellow-600", Icon: "fas fa-book", ANSI: "33"},
	{Label: "生活", Background: "bg-green-100", Text: "text-green-600", Icon: "fas fa-home", ANSI: "32"},
	{Label: "健康", Background: "bg-red-100", Text: "text-red-600", Icon: "fas fa-heartbeat", ANSI: "31"},
	{Label: "娛樂", Background: "bg-purple-100", Text: "text-purple-600", Icon: "fas fa-gamepad", ANSI: "35"},
	{Label: "約會", Background: "bg-pink-100", Text: "text-pink-600", Icon: "fas fa-heart", ANSI: "95"},
	{Label: "開會", Background: "bg-indigo-100", Text: "text-indigo-600", Icon: "fas fa-users", ANSI: "94"},
	{Label: "其他", Background: "bg-gray-100", Text: "text-gray-600", Icon: "fas fa-ellipsis-h", ANSI: "90"},
}

// Fallback is the style of labels missing from the registry.
var Fallback = Style{Background: "bg-gray-100", Text: "text-gray-600", Icon: "fas fa-tag", ANSI: "90"}

var byLabel = func() map[string]Style {
	m := make(map[string]Style, len(registry))
	for _, s := range registry {
		m[s.Label] = s
	}
	return m
}()

// Lookup returns the style for label, or Fallback carrying label.
func Lookup(label string) Style {
	if s, ok := byLabel[label]; ok {
		return s
	}
	s := Fallback
	s.Label = label
	return s
}

// Valid reports whether label is a registered category.
func Valid(label string) bool {
	_, ok := byLabel[label]
	return ok
}

// Labels returns the registered labels in display order.
func Labels() []string {
	out := make([]string, len(registry))
	for i, s := range registry {
		out[i] = s.Label
	}
	return out
}

// All returns the registered styles in display order.
func All() []Style {
	out := make([]Style, len(registry))
	copy(out, registry)
	return out
}
