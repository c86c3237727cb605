// Package disc implements the umsctl disc commands for WBFS partitions.
package disc

import (
	"context"
	"fmt"

	"github.com/marmos91/umsd/cmd/umsctl/cmdutil"
	"github.com/marmos91/umsd/pkg/wbfs"
	"github.com/spf13/cobra"
)

// chunkSize bounds one read disc request.
const chunkSize = 1 << 20

// discSize is the byte length of a full dual-layer disc image.
const discSize = uint64(wbfs.WiiSectorsPerDisc) << wbfs.WiiSectorShift

// Cmd is the parent command for disc operations.
var Cmd = &cobra.Command{
	Use:   "disc",
	Short: "Read discs stored on a WBFS partition",
	Long: `Open and read disc images stored on the WBFS partition of the device.

Discs are addressed by their 6-character id, for example RMCP01.`,
}

func init() {
	Cmd.AddCommand(openCmd)
	Cmd.AddCommand(readCmd)
	Cmd.AddCommand(hashCmd)
}

// openDisc dials the service and selects the disc with the given id.
func openDisc(ctx context.Context, id string) (*cmdutil.Session, error) {
	s, err := cmdutil.OpenDevice(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Handle.OpenDisc(ctx, id); err != nil {
		s.Close(ctx)
		return nil, fmt.Errorf("failed to open disc %s: %w", id, err)
	}
	return s, nil
}

// wordOffset converts a byte offset to the 4-byte word offset the service
// expects.
func wordOffset(off uint64) (uint32, error) {
	if off%4 != 0 {
		return 0, fmt.Errorf("offset %d is not a multiple of 4", off)
	}
	if off>>2 > uint64(^uint32(0)) {
		return 0, fmt.Errorf("offset %d out of range", off)
	}
	return uint32(off >> 2), nil
}
