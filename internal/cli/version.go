package cli

import (
	"fmt"
	"io"

	"github.com/cruciblehq/rubypack/internal"
)

// Represents the 'rubypack version' command.
type VersionCmd struct{}

// Executes the version command.
func (c *VersionCmd) Run(out io.Writer) error {
	_, err := fmt.Fprintln(out, internal.Name, internal.VersionString())
	return err
}
