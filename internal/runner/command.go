package runner

import (
	"sort"
	"strconv"
	"strings"
)

// Characters that force an argument to be quoted when displayed.
const shellSpecial = " \t\n\"'`$\\|&;<>()*?![]{}~#"

// External command bound to a step.
type Command struct {
	Name    string            // Program name, looked up in PATH, or a path.
	Args    []string          // Arguments, not including the program name.
	Env     map[string]string // Variables pinned for this command, shown when displayed.
	Ambient map[string]string // Variables added to the inherited environment, not displayed.
}

// Returns true if the command names no program.
func (c Command) IsZero() bool {
	return c.Name == ""
}

// Renders the command as an operator would type it, pinned environment
// first, e.g. `BUNDLE_PATH="/cache/gems" bundle install`.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Env)+1+len(c.Args))
	for _, k := range sortedKeys(c.Env) {
		parts = append(parts, k+"="+strconv.Quote(c.Env[k]))
	}
	parts = append(parts, quoteArg(c.Name))
	for _, arg := range c.Args {
		parts = append(parts, quoteArg(arg))
	}
	return strings.Join(parts, " ")
}

// Returns the ambient and pinned environment as KEY=value entries sorted by
// key. Pinned variables win over ambient ones.
func (c Command) Environ() []string {
	return mergeEnv(entries(c.Ambient), entries(c.Env))
}

func entries(m map[string]string) []string {
	env := make([]string, 0, len(m))
	for _, k := range sortedKeys(m) {
		env = append(env, k+"="+m[k])
	}
	return env
}

// Merges override env vars on top of a base env slice.
//
// Entries without "=" are skipped. The result is sorted by key.
func mergeEnv(base, overrides []string) []string {
	merged := make(map[string]string, len(base)+len(overrides))
	for _, entry := range base {
		if k, v, ok := strings.Cut(entry, "="); ok {
			merged[k] = v
		}
	}
	for _, entry := range overrides {
		if k, v, ok := strings.Cut(entry, "="); ok {
			merged[k] = v
		}
	}

	result := make([]string, 0, len(merged))
	for _, k := range sortedKeys(merged) {
		result = append(result, k+"="+merged[k])
	}
	return result
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func quoteArg(arg string) string {
	if arg == "" || strings.ContainsAny(arg, shellSpecial) {
		return strconv.Quote(arg)
	}
	return arg
}
