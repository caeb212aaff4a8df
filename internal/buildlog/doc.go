// Package buildlog renders the operator-facing build log.
//
// The log is organized in sections, each holding steps. A timed step brackets
// the streamed output of an external command and reports its duration when it
// stops; while the command is silent, periodic ticks print progress dots so
// the operator can tell the build has not hung. Warnings, important notices
// and errors are rendered as separate announcement blocks.
//
// Engine packages depend only on the [Logger] interface. [Terminal] is the
// colored implementation used by the CLI, and [Recorder] captures calls for
// tests.
//
// Example usage:
//
//	log := buildlog.NewTerminal(os.Stdout)
//	log.Header("Ruby")
//	log.Section("Bundler")
//	log.StartTimed("Running " + buildlog.Command("bundle install"))
//	log.Line("Fetching gem metadata from https://rubygems.org/")
//	log.StopTimed(3 * time.Second)
package buildlog
