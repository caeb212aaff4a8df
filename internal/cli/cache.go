package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/cruciblehq/rubypack/internal/cache"
	"github.com/dustin/go-humanize"
)

// Represents the 'rubypack cache' command group.
type CacheCmd struct {
	List  CacheListCmd  `cmd:"" help:"List build caches."`
	Clear CacheClearCmd `cmd:"" help:"Remove build caches."`
}

// Represents the 'rubypack cache list' command.
type CacheListCmd struct{}

// Executes the cache list command.
//
// Prints one row per cache with its size, age and identity. Caches without a
// usable metadata record are shown as invalid and are recreated by the next
// build.
func (c *CacheListCmd) Run(out io.Writer) error {
	entries, err := cache.List(RootCmd.CacheRoot)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		_, err := fmt.Fprintf(out, "No caches in %s\n", RootCmd.CacheRoot)
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSIZE\tCREATED\tIDENTITY\tFINGERPRINT")
	for _, e := range entries {
		if e.Metadata == nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\t(invalid)\n", e.Name)
			continue
		}
		identity := e.Metadata.Identity
		if identity == "" {
			identity = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.Name,
			humanize.Bytes(uint64(e.Metadata.Size)),
			humanize.Time(e.Metadata.CreatedAt),
			identity,
			e.Metadata.Fingerprint.Short(),
		)
	}
	return w.Flush()
}

// Represents the 'rubypack cache clear' command.
type CacheClearCmd struct {
	Names []string `arg:"" optional:"" help:"Caches to remove. Removes all caches when omitted."`
}

// Executes the cache clear command.
func (c *CacheClearCmd) Run(ctx context.Context, out io.Writer) error {
	names := c.Names
	if len(names) == 0 {
		entries, err := cache.List(RootCmd.CacheRoot)
		if err != nil {
			return err
		}
		for _, e := range entries {
			names = append(names, e.Name)
		}
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		store, err := cache.Open(RootCmd.CacheRoot, name)
		if err != nil {
			return err
		}
		if err := store.Clear(); err != nil {
			return err
		}
		slog.Debug("cache cleared", "cache", name, "dir", store.Dir())
		fmt.Fprintf(out, "Removed %s\n", name)
	}
	return nil
}
