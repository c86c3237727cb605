package commands

import (
	"fmt"
	"os"

	"github.com/marmos91/umsd/cmd/umsctl/cmdutil"
	"github.com/marmos91/umsd/internal/cli/output"
	"github.com/spf13/cobra"
)

var (
	readCount  uint32
	readOutput string
)

var readCmd = &cobra.Command{
	Use:   "read <sector>",
	Short: "Read sectors from the selected unit",
	Long: `Read sectors from the selected unit and print them as a hex dump, or
write the raw bytes to a file with --out.

Examples:
  # Dump the first sector
  umsctl read 0

  # Save 64 sectors starting at 2048
  umsctl read 2048 --count 64 --out part.img`,
	Args: cobra.ExactArgs(1),
	RunE: runRead,
}

func init() {
	readCmd.Flags().Uint32VarP(&readCount, "count", "n", 1, "Number of sectors")
	readCmd.Flags().StringVar(&readOutput, "out", "", "Write raw sectors to this file")
}

func runRead(cmd *cobra.Command, args []string) error {
	sector, err := cmdutil.ParseUint32("sector", args[0])
	if err != nil {
		return err
	}
	if readCount == 0 {
		return fmt.Errorf("--count must be at least 1")
	}

	ctx, cancel := cmdutil.Context(cmd.Context())
	defer cancel()

	s, err := cmdutil.OpenDevice(ctx)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	size, count, err := unitGeometry(ctx, s)
	if err != nil {
		return err
	}
	if uint64(sector)+uint64(readCount) > uint64(count) {
		return fmt.Errorf("sectors %d..%d beyond unit end %d", sector, uint64(sector)+uint64(readCount)-1, count)
	}

	buf := make([]byte, int(size)*int(readCount))
	if err := s.Handle.ReadSectors(ctx, sector, readCount, buf); err != nil {
		return fmt.Errorf("failed to read sectors: %w", err)
	}

	if readOutput != "" {
		if err := os.WriteFile(readOutput, buf, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", readOutput, err)
		}
		cmdutil.PrintSuccess(fmt.Sprintf("%d sectors written to %s", readCount, readOutput))
		return nil
	}

	dump := output.HexDump{Base: uint64(sector) * uint64(size), Data: buf}
	return cmdutil.PrintOutput(os.Stdout, dump, dump)
}
