package safety

import (
	"fmt"
	"slices"
	"sort"
)

// Audit is the document-level safety summary: the union of actions, the
// concatenation of reasons and the maximum severity across all string leaves.
type Audit struct {
	Allowed  bool     `json:"allowed"`
	Severity Severity `json:"severity"`
	Actions  []string `json:"actions"`
	Reasons  []Reason `json:"reasons"`
}

// DefaultAudit is the summary of a document with no findings.
func DefaultAudit() Audit {
	return Audit{
		Allowed:  true,
		Severity: SeverityLow,
		Actions:  []string{},
		Reasons:  []Reason{},
	}
}

// Merge folds one leaf verdict into the audit. Actions keep first-seen order.
func (a Audit) Merge(r Result) Audit {
	out := Audit{
		Allowed:  a.Allowed && r.Allowed,
		Severity: MaxSeverity(a.Severity, r.Severity),
		Actions:  append([]string(nil), a.Actions...),
		Reasons:  append(append([]Reason(nil), a.Reasons...), r.Reasons...),
	}
	for _, act := range r.Actions {
		if !slices.Contains(out.Actions, act) {
			out.Actions = append(out.Actions, act)
		}
	}
	if out.Actions == nil {
		out.Actions = []string{}
	}
	if out.Reasons == nil {
		out.Reasons = []Reason{}
	}
	return out
}

// BlockedError reports a document with at least one blocked leaf.
type BlockedError struct {
	Audit Audit
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("unsafe content blocked (severity %s, actions %v)", e.Audit.Severity, e.Audit.Actions)
}

// GuardDocument applies Guard to every string leaf of a decoded JSON document
// (maps, slices, strings and scalars). Object keys are visited in sorted
// order. The masked document is returned alongside the audit; when any leaf
// is blocked the error is a *BlockedError carrying the full audit.
func GuardDocument(doc any) (any, Audit, error) {
	masked, audit := walk(doc, DefaultAudit())
	if !audit.Allowed {
		return masked, audit, &BlockedError{Audit: audit}
	}
	return masked, audit, nil
}

func walk(node any, acc Audit) (any, Audit) {
	switch n := node.(type) {
	case map[string]any:
		keys := make([]string, 0, len(n))
		for k := range n {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := make(map[string]any, len(n))
		for _, k := range keys {
			out[k], acc = walk(n[k], acc)
		}
		return out, acc

	case []any:
		out := make([]any, len(n))
		for i, v := range n {
			out[i], acc = walk(v, acc)
		}
		return out, acc

	case []string:
		out := make([]string, len(n))
		for i, v := range n {
			r := Guard(v)
			out[i] = r.MaskedText
			acc = acc.Merge(r)
		}
		return out, acc

	case string:
		r := Guard(n)
		return r.MaskedText, acc.Merge(r)

	default:
		return node, acc
	}
}

// MaskDocument masks PHI in every string leaf of a decoded JSON document.
// Unlike GuardDocument it never blocks and never injects guidance.
func MaskDocument(doc any) any {
	switch n := doc.(type) {
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, v := range n {
			out[k] = MaskDocument(v)
		}
		return out
	case []any:
		out := make([]any, len(n))
		for i, v := range n {
			out[i] = MaskDocument(v)
		}
		return out
	case string:
		return MaskPHI(n)
	default:
		return doc
	}
}

// MaskPHI replaces PHI in text with placeholders and reports nothing else.
func MaskPHI(text string) string {
	masked, _ := maskPHI(text)
	return masked
}
