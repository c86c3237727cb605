package disc

import (
	"fmt"

	"github.com/marmos91/umsd/cmd/umsctl/cmdutil"
	"github.com/spf13/cobra"
)

var openCmd = &cobra.Command{
	Use:   "open <id>",
	Short: "Select a disc",
	Long: `Select the disc with the given id. The selection is held by the service
and used by later read requests from any client.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdutil.Context(cmd.Context())
		defer cancel()

		s, err := openDisc(ctx, args[0])
		if err != nil {
			return err
		}
		s.Close(ctx)
		cmdutil.PrintSuccess(fmt.Sprintf("Disc %s opened", args[0]))
		return nil
	},
}
