package fingerprint

import (
	"errors"
	"io/fs"
	"os"
)

// Looks up an environment variable, reporting whether it is set.
//
// [os.LookupEnv] satisfies this signature.
type LookupFunc func(key string) (string, bool)

// A named source of bytes contributing to a fingerprint.
type Input struct {
	Name string                       // Declared name, hashed ahead of the content.
	read func() ([]byte, bool, error) // Returns the content and whether the source exists.
}

// Returns an input reading the file at path under the declared name.
//
// The name is what gets hashed, so callers should pass a path relative to
// the application root to keep fingerprints stable across checkouts in
// different directories. A missing file is hashed as absent.
func File(name, path string) Input {
	return Input{
		Name: name,
		read: func() ([]byte, bool, error) {
			data, err := os.ReadFile(path)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil, false, nil
				}
				return nil, false, err
			}
			return data, true, nil
		},
	}
}

// Returns an input tracking the value of an environment variable.
//
// The input is named "$KEY". An unset variable is hashed as absent; a
// variable set to the empty string is not.
func Env(key string, lookup LookupFunc) Input {
	return Input{
		Name: "$" + key,
		read: func() ([]byte, bool, error) {
			v, ok := lookup(key)
			if !ok {
				return nil, false, nil
			}
			return []byte(v), true, nil
		},
	}
}

// Returns an input tracking a variable from a fixed environment map.
func EnvFrom(key string, env map[string]string) Input {
	return Env(key, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
}

// Returns an input with literal content.
func Bytes(name string, content []byte) Input {
	data := append([]byte(nil), content...)
	return Input{
		Name: name,
		read: func() ([]byte, bool, error) { return data, true, nil },
	}
}

// Returns an input with literal string content, such as a version string.
func String(name, value string) Input {
	return Bytes(name, []byte(value))
}

// Returns an input that is always hashed as absent.
func Absent(name string) Input {
	return Input{
		Name: name,
		read: func() ([]byte, bool, error) { return nil, false, nil },
	}
}
