// Package cache manages named cache directories that survive across builds.
//
// A [Store] pairs a directory with a metadata record describing the
// fingerprint and identity of the artifact it holds. Opening a store never
// fails because of a damaged record: a missing, truncated or otherwise
// unreadable record is treated as absent, which forces the artifact to be
// rebuilt. [Store.Commit] is the single durability point; it atomically
// replaces the record after the regenerating command has succeeded, so a
// build interrupted before the commit observes the previous record (or none)
// and recomputes.
//
// [Resolve] compares a freshly computed fingerprint with the stored record
// and yields one of [Keep], [Update] or [Recreate]. [Explain] additionally
// reports why, naming the inputs that changed.
//
// Example usage:
//
//	store, err := cache.Open(root, "gems")
//	if err != nil {
//	    return err
//	}
//
//	switch cache.Resolve(result.Fingerprint, store.Metadata(), cache.Identity{}) {
//	case cache.Keep:
//	    return nil
//	case cache.Recreate:
//	    if err := store.Reset(); err != nil {
//	        return err
//	    }
//	}
//
//	// run the regenerating command, then:
//	if err := store.Commit(result, ""); err != nil {
//	    return err
//	}
package cache
