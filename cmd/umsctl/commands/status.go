package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/marmos91/umsd/cmd/umsctl/cmdutil"
	"github.com/marmos91/umsd/internal/bytesize"
	"github.com/marmos91/umsd/internal/cli/output"
	"github.com/marmos91/umsd/pkg/api/handlers"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show service status",
	Long: `Display the service state reported by the status API: selected unit,
media lifecycle, queue occupancy, reply slots and logical units.

Examples:
  # Show status as tables
  umsctl status

  # Show status as JSON
  umsctl status -o json`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := cmdutil.Context(cmd.Context())
	defer cancel()

	st, err := cmdutil.APIClient().Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}
	if format != output.FormatTable {
		return output.NewPrinter(os.Stdout, format, false).Print(st)
	}
	return printStatusTables(st)
}

func printStatusTables(st *handlers.Status) error {
	w := os.Stdout
	disc := st.Disc
	if disc == "" {
		disc = "-"
	}
	pairs := [][2]string{
		{"Device", st.Device},
		{"Version", st.Version},
		{"Uptime", st.Uptime},
		{"Selected unit", strconv.FormatUint(uint64(st.SelectedUnit), 10)},
		{"Attached", strconv.FormatBool(st.Media.Attached)},
		{"Started", strconv.FormatBool(st.Media.Started)},
		{"Queue", fmt.Sprintf("%d/%d", st.Queue.Depth, st.Queue.Capacity)},
		{"Connections", strconv.Itoa(int(st.Connections))},
		{"Disc", disc},
	}
	if st.Heap != nil {
		pairs = append(pairs, [2]string{"Heap", fmt.Sprintf("%s used of %s (%d allocations)",
			bytesize.ByteSize(st.Heap.Used), bytesize.ByteSize(st.Heap.Size), st.Heap.Allocations)})
	}
	if err := output.SimpleTable(w, pairs); err != nil {
		return err
	}

	_, _ = fmt.Fprintln(w)
	if err := output.PrintTable(w, unitList(st.Units)); err != nil {
		return err
	}

	_, _ = fmt.Fprintln(w)
	return output.PrintTable(w, slotList(st.Slots))
}

type unitList []handlers.UnitStatus

func (l unitList) Headers() []string {
	return []string{"Unit", "Backend", "Sector size", "Sectors", "Capacity", "Read-only"}
}

func (l unitList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, u := range l {
		capacity := bytesize.ByteSize(uint64(u.SectorSize) * uint64(u.SectorCount))
		rows = append(rows, []string{
			strconv.FormatUint(uint64(u.Index), 10),
			u.Backend,
			strconv.FormatUint(uint64(u.SectorSize), 10),
			strconv.FormatUint(uint64(u.SectorCount), 10),
			capacity.String(),
			strconv.FormatBool(u.ReadOnly),
		})
	}
	return rows
}

type slotList []handlers.SlotStatus

func (l slotList) Headers() []string { return []string{"Slot", "Result", "Pending"} }

func (l slotList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, s := range l {
		rows = append(rows, []string{s.Class, strconv.Itoa(int(s.Result)), strconv.FormatBool(s.Pending)})
	}
	return rows
}
