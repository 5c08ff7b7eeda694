package cli

import (
	"context"
	"fmt"

	"github.com/cellprofiler/cpbuild/internal"
)

// Represents the 'cpbuild version' command.
type VersionCmd struct{}

// Executes the version command.
func (c *VersionCmd) Run(ctx context.Context) error {
	fmt.Println(internal.VersionString())
	return nil
}
