package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/marmos91/umsd/cmd/umsctl/cmdutil"
	"github.com/marmos91/umsd/internal/bytesize"
	"github.com/spf13/cobra"
)

// DeviceInfo is what the device reports about the selected unit.
type DeviceInfo struct {
	Device      string `json:"device" yaml:"device"`
	Inserted    bool   `json:"inserted" yaml:"inserted"`
	SectorSize  uint32 `json:"sector_size" yaml:"sector_size"`
	SectorCount uint32 `json:"sector_count" yaml:"sector_count"`
}

func (i DeviceInfo) Headers() []string { return []string{"Field", "Value"} }

func (i DeviceInfo) Rows() [][]string {
	return [][]string{
		{"Device", i.Device},
		{"Inserted", strconv.FormatBool(i.Inserted)},
		{"Sector size", strconv.FormatUint(uint64(i.SectorSize), 10)},
		{"Sectors", strconv.FormatUint(uint64(i.SectorCount), 10)},
		{"Capacity", bytesize.ByteSize(uint64(i.SectorSize) * uint64(i.SectorCount)).String()},
	}
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show media presence and capacity of the selected unit",
	Long: `Initialise the device over the socket and report whether media is
present on the selected unit and its capacity.`,
	RunE: runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx, cancel := cmdutil.Context(cmd.Context())
	defer cancel()

	s, err := cmdutil.OpenDevice(ctx)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	if err := s.Handle.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialise device: %w", err)
	}
	inserted, err := s.Handle.IsInserted(ctx)
	if err != nil {
		return fmt.Errorf("failed to query media: %w", err)
	}
	info := DeviceInfo{Device: cmdutil.Flags.Device, Inserted: inserted}
	if inserted {
		info.SectorSize, info.SectorCount, err = s.Handle.Capacity(ctx)
		if err != nil {
			return fmt.Errorf("failed to read capacity: %w", err)
		}
	}
	return cmdutil.PrintOutput(os.Stdout, info, info)
}

// unitGeometry initialises the device and returns the selected unit's
// sector size and count.
func unitGeometry(ctx context.Context, s *cmdutil.Session) (uint32, uint32, error) {
	if err := s.Handle.Init(ctx); err != nil {
		return 0, 0, fmt.Errorf("failed to initialise device: %w", err)
	}
	size, count, err := s.Handle.Capacity(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read capacity: %w", err)
	}
	return size, count, nil
}
