package plan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cruciblehq/rubypack/internal/build"
	"github.com/cruciblehq/rubypack/internal/cache"
	"github.com/cruciblehq/rubypack/internal/failure"
	"github.com/cruciblehq/rubypack/internal/fingerprint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nodePlan = `
[[step]]
kind           = "runtime"
name           = "node"
title          = "Node.js"
identity       = "20.11.0"
identity_label = "Node version"
policy         = "recreate"
reuse          = "Using previously installed Node.js"
command        = ["sh", "-c", "tar -xzf node.tgz -C $LAYER_DIR"]

[step.exports]
PATH = "$LAYER_DIR/bin:$PATH"

[[step]]
kind       = "dependencies"
name       = "node-modules"
inputs     = ["package.json", "package-lock.json"]
env_inputs = ["NODE_ENV"]
required   = ["package-lock.json"]
command    = ["npm", "ci"]

[step.command_env]
NPM_CONFIG_CACHE = "/tmp/npm"

[[step]]
kind     = "tasks"
name     = "assets"
workdir  = "web"
uncached = true
command  = ["npm", "run", "build"]

[step.env]
NODE_OPTIONS = "--max-old-space-size=2048"
`

func lookup(env map[string]string) fingerprint.LookupFunc {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(nodePlan), 0644))

	steps, err := Load(path, lookup(map[string]string{"NODE_ENV": "production"}))
	require.NoError(t, err)
	require.Len(t, steps, 3)

	node := steps[0]
	assert.Equal(t, build.RuntimeInstall, node.Kind)
	assert.Equal(t, "node", node.Name)
	assert.Equal(t, "Node.js", node.Title)
	assert.Equal(t, cache.Identity{Label: "Node version", Value: "20.11.0", Policy: cache.IdentityRecreate}, node.Identity)
	assert.Equal(t, "sh", node.Command.Name)
	assert.Equal(t, []string{"-c", "tar -xzf node.tgz -C $LAYER_DIR"}, node.Command.Args)
	assert.Equal(t, "$LAYER_DIR/bin:$PATH", node.Exports["PATH"])
	assert.Equal(t, "Using previously installed Node.js", node.Reuse)
	assert.Equal(t, dir, node.Workdir)

	modules := steps[1]
	assert.Equal(t, build.PackageManagerInstall, modules.Kind)
	assert.Equal(t, map[string]string{"NPM_CONFIG_CACHE": "/tmp/npm"}, modules.Command.Env)
	assert.Equal(t, []string{filepath.Join(dir, "package-lock.json")}, modules.Required)

	result, err := fingerprint.Compute(modules.Inputs)
	require.NoError(t, err)
	assert.Equal(t, []string{"package.json", "package-lock.json", "$NODE_ENV"}, result.Names())
	assert.True(t, result.Inputs[0].Absent)
	assert.False(t, result.Inputs[2].Absent)

	assets := steps[2]
	assert.Equal(t, build.ProjectTasks, assets.Kind)
	assert.True(t, assets.Uncached)
	assert.Equal(t, filepath.Join(dir, "web"), assets.Workdir)
	assert.Equal(t, "--max-old-space-size=2048", assets.Env["NODE_OPTIONS"])
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), DefaultFile), lookup(nil))
	require.ErrorIs(t, err, failure.ErrMissingInput)
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"no steps":          ``,
		"syntax":            `[[step]` + "\n",
		"unknown key":       "[[step]]\nkind = \"runtime\"\nname = \"a\"\ncommand = [\"x\"]\ncomand = [\"y\"]\n",
		"unknown kind":      "[[step]]\nkind = \"deploy\"\nname = \"a\"\ncommand = [\"x\"]\n",
		"no command":        "[[step]]\nkind = \"runtime\"\nname = \"a\"\n",
		"bad policy":        "[[step]]\nkind = \"runtime\"\nname = \"a\"\ncommand = [\"x\"]\npolicy = \"sometimes\"\n",
		"absolute input":    "[[step]]\nkind = \"runtime\"\nname = \"a\"\ncommand = [\"x\"]\ninputs = [\"/etc/passwd\"]\n",
		"absolute required": "[[step]]\nkind = \"runtime\"\nname = \"a\"\ncommand = [\"x\"]\nrequired = [\"/etc/passwd\"]\n",
		"bad cache name":    "[[step]]\nkind = \"runtime\"\nname = \"Gems\"\ncommand = [\"x\"]\n",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(content), t.TempDir(), lookup(nil))
			require.ErrorIs(t, err, ErrInvalidPlan)
		})
	}
}

func TestParseUncachedStepName(t *testing.T) {
	content := "[[step]]\nkind = \"tasks\"\nname = \"Rake Tasks\"\ncommand = [\"rake\"]\nuncached = true\n"

	steps, err := Parse([]byte(content), t.TempDir(), lookup(nil))
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "Rake Tasks", steps[0].Name)
}

func TestParseRequiredRelativeToPlan(t *testing.T) {
	base := t.TempDir()
	content := "[[step]]\nkind = \"runtime\"\nname = \"a\"\ncommand = [\"x\"]\nrequired = [\"bin/ruby\"]\n"

	steps, err := Parse([]byte(content), base, lookup(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(base, "bin/ruby")}, steps[0].Required)
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]cache.IdentityPolicy{
		"":         cache.IdentityIgnore,
		"ignore":   cache.IdentityIgnore,
		"update":   cache.IdentityUpdate,
		"recreate": cache.IdentityRecreate,
	} {
		got, err := parsePolicy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
