// Package ruby declares the build steps for a Ruby application.
//
// The Ruby version and the bundler version are read from the application's
// Gemfile.lock. The preset installs a prebuilt Ruby, installs bundler, runs
// bundle install into a cache store and finally runs the application's rake
// tasks. Every cached step is fingerprinted so that a rebuild with unchanged
// inputs skips it.
//
// Example usage:
//
//	steps, err := ruby.Steps(ruby.Options{
//		AppDir:    "/workspace",
//		CacheRoot: paths.CacheRoot(),
//		Stack:     "heroku-22",
//		Env:       userEnv,
//	})
//	if err != nil {
//		return err
//	}
//
//	report, err := build.New(build.Options{
//		AppDir:    "/workspace",
//		CacheRoot: paths.CacheRoot(),
//		Log:       buildlog.NewTerminal(os.Stdout),
//		Env:       userEnv,
//	}).Run(ctx, steps)
package ruby
