// Package fingerprint computes content digests over declared build inputs.
//
// A fingerprint is a sha256 digest over an ordered list of named inputs.
// Each input contributes its name, a NUL separator, an 8-byte big-endian
// length and its content to a single hash stream, in the order the caller
// declared them. Inputs whose source does not exist (a missing file, an
// unset environment variable) contribute a reserved length and no content,
// so absence never collides with empty content. Only names and content are
// hashed; file timestamps and permissions never are.
//
// Example usage:
//
//	result, err := fingerprint.Compute([]fingerprint.Input{
//	    fingerprint.File("Gemfile", filepath.Join(app, "Gemfile")),
//	    fingerprint.File("Gemfile.lock", filepath.Join(app, "Gemfile.lock")),
//	    fingerprint.Env("BUNDLE_WITHOUT", os.LookupEnv),
//	})
//	if err != nil {
//	    return err
//	}
//
//	fmt.Println(result.Fingerprint.Short())
package fingerprint
