package usb

import "fmt"

// Legacy USB interface command codes.
const (
	CmdUSBInit       uint32 = 1
	CmdUSBRead       uint32 = 2
	CmdUSBWrite      uint32 = 3
	CmdUSBIsInserted uint32 = 4
	CmdUSBUnmount    uint32 = 5
)

// UMS interface command codes.
const (
	umsBase = 0x554D5300 // "UMS\0"

	CmdUMSInit         uint32 = umsBase + 0x01
	CmdUMSGetCapacity  uint32 = umsBase + 0x02
	CmdUMSReadSectors  uint32 = umsBase + 0x03
	CmdUMSWriteSectors uint32 = umsBase + 0x04
	CmdUMSSetDrive     uint32 = umsBase + 0x83
)

// WBFS interface command codes.
const (
	wbfsBase = 0x57465300 // "WFS\0"

	CmdWBFSOpenDisc uint32 = wbfsBase + 0x01
	CmdWBFSReadDisc uint32 = wbfsBase + 0x02
)

// Command statuses outside the IPC error space.
const (
	// StatusStorageFailure is the inverted boolean of a failed storage call.
	StatusStorageFailure int32 = 1

	// StatusBadUnit is returned when selecting a unit other than 0 or 1.
	StatusBadUnit int32 = -1

	// StatusDiscReadFailure is returned when a disc-image read fails.
	StatusDiscReadFailure int32 = 0x8000
)

// DiscIDLen is the length of a disc identifier.
const DiscIDLen = 6

// CommandName returns the name of a command code.
func CommandName(code uint32) string {
	if cmd, ok := dispatchTable[code]; ok {
		return cmd.Name
	}
	return fmt.Sprintf("UNKNOWN(0x%08x)", code)
}
