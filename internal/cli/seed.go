package cli

import (
	"fmt"

	"github.com/abrezinsky/slotboard/internal/errors"
)

// SeedCmd writes the weekly template into an empty store
type SeedCmd struct{}

func (cmd *SeedCmd) Run(c *Context) error {
	lifecycle, err := c.Lifecycle()
	if err != nil {
		return err
	}

	result, err := lifecycle.RunSeed(c.Ctx)
	if errors.IsKind(err, errors.ErrAlreadySeeded) {
		// Scheduled runs seed unconditionally
		fmt.Fprintln(c.Out, "Schedule already seeded, nothing to do")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "Seeded %d slots\n", result.Slots)
	return nil
}
