package disc

import (
	"fmt"
	"os"

	"github.com/marmos91/umsd/cmd/umsctl/cmdutil"
	"github.com/marmos91/umsd/internal/bytesize"
	"github.com/marmos91/umsd/internal/cli/output"
	"github.com/spf13/cobra"
)

var (
	readOffset string
	readLength string
	readOutput string
)

var readCmd = &cobra.Command{
	Use:   "read <id>",
	Short: "Read bytes of a disc",
	Long: `Open the disc and read --length bytes at --offset. Unallocated regions
read as zeros.

Examples:
  # Dump the disc header
  umsctl disc read RMCP01 --length 256

  # Extract the first 32MiB
  umsctl disc read RMCP01 --length 32MiB --out head.bin`,
	Args: cobra.ExactArgs(1),
	RunE: runRead,
}

func init() {
	readCmd.Flags().StringVar(&readOffset, "offset", "0", "Byte offset, multiple of 4")
	readCmd.Flags().StringVar(&readLength, "length", "512", "Number of bytes")
	readCmd.Flags().StringVar(&readOutput, "out", "", "Write raw bytes to this file")
}

func runRead(cmd *cobra.Command, args []string) error {
	offset, err := bytesize.Parse(readOffset)
	if err != nil {
		return fmt.Errorf("invalid --offset: %w", err)
	}
	length, err := bytesize.Parse(readLength)
	if err != nil {
		return fmt.Errorf("invalid --length: %w", err)
	}
	if length == 0 {
		return fmt.Errorf("--length must be positive")
	}
	if _, err := wordOffset(uint64(offset)); err != nil {
		return err
	}

	ctx, cancel := cmdutil.Context(cmd.Context())
	defer cancel()

	s, err := openDisc(ctx, args[0])
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	buf := make([]byte, int(length))
	for done := 0; done < len(buf); {
		n := min(chunkSize, len(buf)-done)
		word, err := wordOffset(uint64(offset) + uint64(done))
		if err != nil {
			return err
		}
		if err := s.Handle.ReadDisc(ctx, word, buf[done:done+n]); err != nil {
			return fmt.Errorf("failed to read disc at %d: %w", uint64(offset)+uint64(done), err)
		}
		done += n
	}

	if readOutput != "" {
		if err := os.WriteFile(readOutput, buf, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", readOutput, err)
		}
		cmdutil.PrintSuccess(fmt.Sprintf("%s written to %s", length, readOutput))
		return nil
	}

	dump := output.HexDump{Base: uint64(offset), Data: buf}
	return cmdutil.PrintOutput(os.Stdout, dump, dump)
}
