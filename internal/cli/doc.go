// Parses flags and runs the rubypack commands.
//
// The root command accepts the following flags:
//
//	-q, --quiet        Only show warnings and errors.
//	-v, --verbose      Show changed inputs when a cache is invalidated.
//	-d, --debug        Enable debug diagnostics on stderr.
//	    --no-color     Disable colored output.
//	    --cache-root   Directory holding the build caches.
//
// Flags override build-time defaults set via linker flags. After parsing, the
// global logger is reconfigured to reflect the final level before the selected
// command runs.
//
// Example usage:
//
//	rubypack build ./app --env-file .env -e RAILS_ENV=production
//	rubypack cache list
//	rubypack cache clear gems
package cli
