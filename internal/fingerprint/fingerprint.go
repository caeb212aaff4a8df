package fingerprint

import (
	_ "crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/opencontainers/go-digest"
)

// Length written in place of a content length for absent inputs. No real
// content can reach it, so it cannot collide with a present input.
const absentLength uint64 = math.MaxUint64

// Number of hex characters shown by [Fingerprint.Short].
const shortLength = 12

// Deterministic sha256 digest over an ordered set of named inputs.
//
// The zero value means "no fingerprint" and never equals a computed one.
type Fingerprint digest.Digest

// Parses a stored fingerprint of the form "sha256:<hex>".
func Parse(s string) (Fingerprint, error) {
	d, err := digest.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if d.Algorithm() != digest.SHA256 {
		return "", fmt.Errorf("%w: unsupported algorithm %q", ErrInvalid, d.Algorithm())
	}
	return Fingerprint(d), nil
}

// Returns the fingerprint in "sha256:<hex>" form.
func (f Fingerprint) String() string {
	return string(f)
}

// Returns the hex-encoded digest without the algorithm prefix.
func (f Fingerprint) Hex() string {
	if f.IsZero() {
		return ""
	}
	return digest.Digest(f).Encoded()
}

// Returns an abbreviated hex digest for log output.
func (f Fingerprint) Short() string {
	h := f.Hex()
	if len(h) > shortLength {
		return h[:shortLength]
	}
	return h
}

// Returns true if f is the zero fingerprint.
func (f Fingerprint) IsZero() bool {
	return f == ""
}

// Implements [encoding.TextMarshaler].
func (f Fingerprint) MarshalText() ([]byte, error) {
	return []byte(f), nil
}

// Implements [encoding.TextUnmarshaler], rejecting malformed digests.
func (f *Fingerprint) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Per-input digest, kept so a later build can tell which input changed.
type Record struct {
	Name   string        // Declared input name.
	Digest digest.Digest // Digest of the content. Empty when absent.
	Absent bool          // Whether the source did not exist.
}

// Returns the digest, or "absent" for a missing source.
func (r Record) String() string {
	if r.Absent {
		return "absent"
	}
	return r.Digest.String()
}

// Outcome of hashing a set of inputs.
type Result struct {
	Fingerprint Fingerprint // Digest over all inputs.
	Inputs      []Record    // One record per input, in declared order.
}

// Returns the per-input records keyed by input name.
func (r Result) Summary() map[string]string {
	summary := make(map[string]string, len(r.Inputs))
	for _, rec := range r.Inputs {
		summary[rec.Name] = rec.String()
	}
	return summary
}

// Returns the input names in declared order.
func (r Result) Names() []string {
	names := make([]string, len(r.Inputs))
	for i, rec := range r.Inputs {
		names[i] = rec.Name
	}
	return names
}

// Hashes the inputs in the declared order.
//
// Each input is read once. Names must be non-empty, unique and free of NUL
// bytes. A source that exists but cannot be read fails the computation with
// [ErrUnreadableInput]; a missing source is hashed as absent.
func Compute(inputs []Input) (Result, error) {
	digester := digest.SHA256.Digester()
	h := digester.Hash()

	records := make([]Record, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))

	var length [8]byte
	for _, in := range inputs {
		if err := validate(in, seen); err != nil {
			return Result{}, err
		}

		content, ok, err := in.read()
		if err != nil {
			return Result{}, fmt.Errorf("%w: %s: %w", ErrUnreadableInput, in.Name, err)
		}

		h.Write([]byte(in.Name))
		h.Write([]byte{0})

		if !ok {
			binary.BigEndian.PutUint64(length[:], absentLength)
			h.Write(length[:])
			records = append(records, Record{Name: in.Name, Absent: true})
			continue
		}

		binary.BigEndian.PutUint64(length[:], uint64(len(content)))
		h.Write(length[:])
		h.Write(content)
		records = append(records, Record{Name: in.Name, Digest: digest.FromBytes(content)})
	}

	return Result{
		Fingerprint: Fingerprint(digester.Digest()),
		Inputs:      records,
	}, nil
}

// Hashes the inputs and returns only the combined fingerprint.
func Of(inputs ...Input) (Fingerprint, error) {
	result, err := Compute(inputs)
	if err != nil {
		return "", err
	}
	return result.Fingerprint, nil
}

// Checks an input's name and records it in seen.
func validate(in Input, seen map[string]struct{}) error {
	if in.read == nil {
		return fmt.Errorf("%w: input %q has no source", ErrInvalidInput, in.Name)
	}
	if in.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidInput)
	}
	if strings.IndexByte(in.Name, 0) >= 0 {
		return fmt.Errorf("%w: name %q contains a NUL byte", ErrInvalidInput, in.Name)
	}
	if _, dup := seen[in.Name]; dup {
		return fmt.Errorf("%w: duplicate name %q", ErrInvalidInput, in.Name)
	}
	seen[in.Name] = struct{}{}
	return nil
}
