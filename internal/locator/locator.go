// Package locator implements the selector engine (spec.md §4.5): a
// priority-ordered locator description, resolved either through the
// protocol's DOM query (CSS/structural) or in-page (text/xpath), producing
// a remote object id that the action executor and wait engine operate on.
package locator

// Strategy is how a Locator's Value is interpreted during resolution.
type Strategy int

const (
	StrategyCSS Strategy = iota
	StrategyXPath
	StrategyTextExact
	StrategyTextContains
)

// priority mirrors spec.md §4.5's highest-to-lowest locator priority, used
// only by BuildFromHints; the engine itself never reorders a caller's
// explicit Locator.
type kindPriority int

const (
	prioritySemantic kindPriority = iota
	priorityTestID
	priorityText
	priorityStructural
	priorityCSS
	priorityXPath
)

// Step is one link of a scoped locator chain, resolved against the
// previous step's node (or the document root / current frame for the
// first step).
type Step struct {
	Strategy Strategy
	Value    string
}

// Locator is an ordered chain of steps plus an optional frame selector.
// Callers SHOULD build these through the constructor helpers below so
// priority is encoded at the call site, per spec.md §4.5.
type Locator struct {
	Steps []Step
	Frame *Locator
}

func single(strategy Strategy, value string) Locator {
	return Locator{Steps: []Step{{Strategy: strategy, Value: value}}}
}

// CSS builds a raw CSS selector locator.
func CSS(selector string) Locator { return single(StrategyCSS, selector) }

// XPath builds an XPath locator.
func XPath(expr string) Locator { return single(StrategyXPath, expr) }

// TextExact/TextContains build a locator matching trimmed element text.
func TextExact(text string) Locator    { return single(StrategyTextExact, text) }
func TextContains(text string) Locator { return single(StrategyTextContains, text) }

// Role builds a semantic locator from an ARIA role, translated to a CSS
// attribute selector (the highest-priority strategy, spec.md §4.5).
func Role(role string) Locator { return CSS(`[role="` + cssEscape(role) + `"]`) }

// AriaLabel builds a semantic locator from an accessible label.
func AriaLabel(label string) Locator { return CSS(`[aria-label="` + cssEscape(label) + `"]`) }

// TestID builds a locator from a test/automation id attribute.
func TestID(value string) Locator { return CSS(`[data-testid="` + cssEscape(value) + `"]`) }

// Placeholder/Title build locators from common textual attributes.
func Placeholder(value string) Locator { return CSS(`[placeholder="` + cssEscape(value) + `"]`) }
func Title(value string) Locator       { return CSS(`[title="` + cssEscape(value) + `"]`) }

// ID/Name build structural locators.
func ID(value string) Locator   { return CSS(`#` + cssEscapeIdent(value)) }
func Name(value string) Locator { return CSS(`[name="` + cssEscape(value) + `"]`) }

// Scope appends next as an inner step of l, resolved within l's node.
func (l Locator) Scope(next Locator) Locator {
	out := Locator{Steps: append(append([]Step(nil), l.Steps...), next.Steps...), Frame: l.Frame}
	return out
}

// InFrame returns a copy of l scoped to the given frame locator.
func (l Locator) InFrame(frame Locator) Locator {
	l.Frame = &frame
	return l
}

func cssEscape(v string) string {
	out := make([]rune, 0, len(v))
	for _, r := range v {
		if r == '"' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}

func cssEscapeIdent(v string) string {
	out := make([]rune, 0, len(v))
	for _, r := range v {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '\\', r)
		}
	}
	return string(out)
}

// BuildFromHints chooses one locator from a hints map using spec.md §4.5's
// priority order: semantic → test id → textual → structural → raw CSS →
// XPath.
func BuildFromHints(hints map[string]string) (Locator, bool) {
	type candidate struct {
		priority kindPriority
		build    func() Locator
	}
	var candidates []candidate
	if v, ok := hints["role"]; ok && v != "" {
		candidates = append(candidates, candidate{priority: priorityCSSForRole(), build: func() Locator { return Role(v) }})
	}
	if v, ok := hints["aria-label"]; ok && v != "" {
		candidates = append(candidates, candidate{priority: priorityCSSForRole(), build: func() Locator { return AriaLabel(v) }})
	}
	if v, ok := hints["data-testid"]; ok && v != "" {
		candidates = append(candidates, candidate{priority: priorityTestID, build: func() Locator { return TestID(v) }})
	}
	if v, ok := hints["text"]; ok && v != "" {
		candidates = append(candidates, candidate{priority: priorityText, build: func() Locator { return TextContains(v) }})
	}
	if v, ok := hints["placeholder"]; ok && v != "" {
		candidates = append(candidates, candidate{priority: priorityText, build: func() Locator { return Placeholder(v) }})
	}
	if v, ok := hints["id"]; ok && v != "" {
		candidates = append(candidates, candidate{priority: priorityStructural, build: func() Locator { return ID(v) }})
	}
	if v, ok := hints["name"]; ok && v != "" {
		candidates = append(candidates, candidate{priority: priorityStructural, build: func() Locator { return Name(v) }})
	}
	if v, ok := hints["css"]; ok && v != "" {
		candidates = append(candidates, candidate{priority: priorityCSS, build: func() Locator { return CSS(v) }})
	}
	if v, ok := hints["xpath"]; ok && v != "" {
		candidates = append(candidates, candidate{priority: priorityXPath, build: func() Locator { return XPath(v) }})
	}
	if len(candidates) == 0 {
		return Locator{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.priority < best.priority {
			best = c
		}
	}
	return best.build(), true
}

func priorityCSSForRole() kindPriority { return prioritySemantic }
