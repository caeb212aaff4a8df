// Package plan loads declarative build plans.
//
// A plan is a TOML file listing build steps for projects the Ruby preset does
// not cover. Each [[step]] table declares the step kind, the command that
// regenerates its cache, the files and environment variables it depends on,
// and the environment it exports to later steps. Input paths are relative to
// the directory holding the plan.
//
//	[[step]]
//	kind     = "runtime"
//	name     = "node"
//	title    = "Node.js"
//	identity = "20.11.0"
//	policy   = "recreate"
//	command  = ["sh", "-c", "curl -sSfL $NODE_URL | tar -xz -C $LAYER_DIR --strip-components 1"]
//
//	[step.exports]
//	PATH = "$LAYER_DIR/bin:$PATH"
//
//	[[step]]
//	kind       = "dependencies"
//	name       = "node-modules"
//	inputs     = ["package.json", "package-lock.json"]
//	env_inputs = ["NODE_ENV"]
//	required   = ["package-lock.json"]
//	command    = ["npm", "ci"]
//
// Example usage:
//
//	steps, err := plan.Load("buildplan.toml", os.LookupEnv)
//	if err != nil {
//	    return err
//	}
//	report, err := pipeline.Run(ctx, steps)
package plan
