package cache

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cruciblehq/rubypack/internal/fingerprint"
	"github.com/pmezard/go-difflib/difflib"
)

// What to do with an existing cache before running its step.
type Decision int

const (
	Recreate Decision = iota // Discard the cache and rebuild from scratch.
	Update                   // Keep the contents but run the step again on top of them.
	Keep                     // Reuse the cache and skip the step.
)

// Returns the lowercase name of the decision.
func (d Decision) String() string {
	switch d {
	case Keep:
		return "keep"
	case Update:
		return "update"
	case Recreate:
		return "recreate"
	}
	return fmt.Sprintf("decision(%d)", int(d))
}

// How a change in identity affects a cache whose fingerprint is unchanged.
type IdentityPolicy int

const (
	IdentityIgnore   IdentityPolicy = iota // Identity changes are ignored.
	IdentityUpdate                         // Identity changes yield [Update].
	IdentityRecreate                       // Identity changes yield [Recreate].
)

// Non-content identity of a cached artifact, such as a tool version.
type Identity struct {
	Label  string         // Human-readable name, e.g. "Ruby version".
	Value  string         // Current value.
	Policy IdentityPolicy // Reaction to a change of value.
}

// Decides what to do with a cache given the current fingerprint and the
// stored record.
//
// A missing record or a fingerprint mismatch always yields [Recreate]. With a
// matching fingerprint, a differing identity is handled per the identity's
// policy; otherwise the result is [Keep]. The function is total and never
// fails.
func Resolve(current fingerprint.Fingerprint, stored *Metadata, id Identity) Decision {
	if stored == nil || stored.Fingerprint.IsZero() || current.IsZero() {
		return Recreate
	}
	if stored.Fingerprint != current {
		return Recreate
	}
	if stored.Identity == id.Value {
		return Keep
	}
	switch id.Policy {
	case IdentityUpdate:
		return Update
	case IdentityRecreate:
		return Recreate
	}
	return Keep
}

// Decision together with the reason for it.
type Explanation struct {
	Decision Decision // Resolved decision.
	Reason   string   // Short human-readable reason, empty for [Keep].
	Changed  []string // Names of inputs added, removed or modified.
	Diff     string   // Unified diff of the stored and current input digests.
}

// Resolves the decision for a cache and explains it.
//
// Changed inputs are reported in the declared order of current, followed by
// removed inputs in lexical order.
func Explain(current fingerprint.Result, stored *Metadata, id Identity) Explanation {
	e := Explanation{Decision: Resolve(current.Fingerprint, stored, id)}

	if stored == nil {
		e.Reason = "no previous cache"
		return e
	}

	if stored.Fingerprint != current.Fingerprint {
		e.Changed = changedInputs(current, stored.Inputs)
		e.Diff = inputDiff(current.Summary(), stored.Inputs)
		if len(e.Changed) == 0 {
			e.Reason = "inputs changed"
		} else {
			e.Reason = fmt.Sprintf("%s changed", joinNames(e.Changed))
		}
		return e
	}

	if stored.Identity != id.Value && e.Decision != Keep {
		label := id.Label
		if label == "" {
			label = "identity"
		}
		e.Reason = fmt.Sprintf("%s changed from %s to %s", label, orNone(stored.Identity), orNone(id.Value))
	}
	return e
}

// Returns the names of inputs whose digests differ from stored.
func changedInputs(current fingerprint.Result, stored map[string]string) []string {
	var changed []string
	present := make(map[string]struct{}, len(current.Inputs))
	for _, rec := range current.Inputs {
		present[rec.Name] = struct{}{}
		if prev, ok := stored[rec.Name]; !ok || prev != rec.String() {
			changed = append(changed, rec.Name)
		}
	}

	var removed []string
	for name := range stored {
		if _, ok := present[name]; !ok {
			removed = append(removed, name)
		}
	}
	sort.Strings(removed)

	return append(changed, removed...)
}

// Renders a unified diff of two input summaries.
func inputDiff(current, stored map[string]string) string {
	diff := difflib.UnifiedDiff{
		A:        summaryLines(stored),
		B:        summaryLines(current),
		FromFile: "cached",
		ToFile:   "current",
		Context:  1,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return ""
	}
	return text
}

// Returns "name = digest" lines sorted by name.
func summaryLines(summary map[string]string) []string {
	lines := make([]string, 0, len(summary))
	for name, digest := range summary {
		lines = append(lines, fmt.Sprintf("%s = %s\n", name, digest))
	}
	sort.Strings(lines)
	return lines
}

// Joins names into an English list, e.g. "a, b and c".
func joinNames(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "`" + n + "`"
	}
	switch len(quoted) {
	case 0:
		return ""
	case 1:
		return quoted[0]
	}
	return strings.Join(quoted[:len(quoted)-1], ", ") + " and " + quoted[len(quoted)-1]
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
