package commands

import (
	"fmt"

	"github.com/marmos91/umsd/cmd/umsctl/cmdutil"
	"github.com/spf13/cobra"
)

var unitCmd = &cobra.Command{
	Use:   "unit <index>",
	Short: "Select the logical unit",
	Long: `Select the logical unit subsequent sector commands address. The choice
is held by the service and applies to every client.`,
	Args: cobra.ExactArgs(1),
	RunE: runUnit,
}

func runUnit(cmd *cobra.Command, args []string) error {
	unit, err := cmdutil.ParseUint32("unit", args[0])
	if err != nil {
		return err
	}

	ctx, cancel := cmdutil.Context(cmd.Context())
	defer cancel()

	s, err := cmdutil.OpenDevice(ctx)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	if err := s.Handle.SetUnit(ctx, unit); err != nil {
		return fmt.Errorf("failed to select unit %d: %w", unit, err)
	}
	cmdutil.PrintSuccess(fmt.Sprintf("Unit %d selected", unit))
	return nil
}
