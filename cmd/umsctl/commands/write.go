package commands

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/marmos91/umsd/cmd/umsctl/cmdutil"
	"github.com/marmos91/umsd/internal/cli/prompt"
	"github.com/spf13/cobra"
)

var (
	writeFile  string
	writeFill  uint8
	writeCount uint32
	writeForce bool
)

var writeCmd = &cobra.Command{
	Use:   "write <sector>",
	Short: "Write sectors to the selected unit",
	Long: `Write sectors to the selected unit, either from a file or filled with a
byte pattern. File data is zero-padded to a whole number of sectors.

Examples:
  # Write an image starting at sector 0
  umsctl write 0 --file disk.img

  # Zero 8 sectors without prompting
  umsctl write 100 --count 8 --fill 0 --force`,
	Args: cobra.ExactArgs(1),
	RunE: runWrite,
}

func init() {
	writeCmd.Flags().StringVarP(&writeFile, "file", "f", "", "Read data from this file")
	writeCmd.Flags().Uint8Var(&writeFill, "fill", 0, "Fill byte when no file is given")
	writeCmd.Flags().Uint32VarP(&writeCount, "count", "n", 1, "Number of sectors to fill")
	writeCmd.Flags().BoolVar(&writeForce, "force", false, "Skip confirmation prompt")
}

// sectorData returns the payload for the write, padded to size.
func sectorData(size uint32) ([]byte, error) {
	if writeFile == "" {
		if writeCount == 0 {
			return nil, fmt.Errorf("--count must be at least 1")
		}
		return bytes.Repeat([]byte{writeFill}, int(size)*int(writeCount)), nil
	}

	data, err := os.ReadFile(writeFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", writeFile, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s is empty", writeFile)
	}
	if rem := len(data) % int(size); rem != 0 {
		data = append(data, make([]byte, int(size)-rem)...)
	}
	return data, nil
}

func runWrite(cmd *cobra.Command, args []string) error {
	sector, err := cmdutil.ParseUint32("sector", args[0])
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

	size, total, err := unitGeometry(ctx, s)
	if err != nil {
		return err
	}
	data, err := sectorData(size)
	if err != nil {
		return err
	}
	count := uint32(len(data) / int(size))
	if uint64(sector)+uint64(count) > uint64(total) {
		return fmt.Errorf("sectors %d..%d beyond unit end %d", sector, uint64(sector)+uint64(count)-1, total)
	}

	label := fmt.Sprintf("Overwrite %d sectors at %d on %s", count, sector, cmdutil.Flags.Device)
	confirmed, err := prompt.ConfirmWithForce(label, writeForce)
	if err != nil {
		if errors.Is(err, prompt.ErrAborted) {
			fmt.Println("\nAborted.")
			return nil
		}
		return err
	}
	if !confirmed {
		fmt.Println("Aborted.")
		return nil
	}

	if err := s.Handle.WriteSectors(ctx, sector, count, data); err != nil {
		return fmt.Errorf("failed to write sectors: %w", err)
	}
	cmdutil.PrintSuccess(fmt.Sprintf("%d sectors written at %d", count, sector))
	return nil
}
