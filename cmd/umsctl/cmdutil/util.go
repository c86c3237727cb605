// Package cmdutil provides shared utilities for umsctl commands.
package cmdutil

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/marmos91/umsd/internal/cli/output"
	"github.com/marmos91/umsd/pkg/apiclient"
	"github.com/marmos91/umsd/pkg/client"
)

// DefaultServerURL is the status API address umsd binds by default.
const DefaultServerURL = "http://127.0.0.1:8484"

// Flags stores global flag values accessible by subcommands.
var Flags = &GlobalFlags{}

// GlobalFlags holds the global flag values.
type GlobalFlags struct {
	Socket    string
	ServerURL string
	Device    string
	Output    string
	NoColor   bool
	Timeout   time.Duration
}

// Context derives a command context bounded by --timeout.
func Context(parent context.Context) (context.Context, context.CancelFunc) {
	if Flags.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, Flags.Timeout)
}

// Session is an open device handle on a socket connection.
type Session struct {
	Client *client.Client
	Handle *client.Handle
}

// Close closes the handle and then the connection.
func (s *Session) Close(ctx context.Context) {
	_ = s.Handle.Close(ctx)
	_ = s.Client.Close()
}

// OpenDevice dials the socket and opens --device on it.
func OpenDevice(ctx context.Context) (*Session, error) {
	c, err := client.Dial(ctx, Flags.Socket)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", Flags.Socket, err)
	}
	h, err := c.Open(ctx, Flags.Device)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to open %s: %w", Flags.Device, err)
	}
	return &Session{Client: c, Handle: h}, nil
}

// APIClient returns a status API client for --server.
func APIClient() *apiclient.Client {
	return apiclient.New(Flags.ServerURL)
}

// GetOutputFormatParsed returns the parsed output format.
func GetOutputFormatParsed() (output.Format, error) {
	return output.ParseFormat(Flags.Output)
}

// IsColorDisabled returns whether color output is disabled.
func IsColorDisabled() bool {
	return Flags.NoColor
}

// PrintOutput prints data as JSON or YAML, or through tableRenderer in table
// format.
func PrintOutput(w io.Writer, data any, tableRenderer output.TableRenderer) error {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return err
	}
	if format == output.FormatTable {
		return output.PrintTable(w, tableRenderer)
	}
	return output.NewPrinter(w, format, false).Print(data)
}

// PrintSuccess prints a success message if the output format is table.
func PrintSuccess(msg string) {
	format, err := GetOutputFormatParsed()
	if err != nil || format != output.FormatTable {
		return
	}
	output.NewPrinter(os.Stdout, format, !IsColorDisabled()).Success(msg)
}

// ParseUint32 parses a decimal or 0x-prefixed command argument.
func ParseUint32(name, s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return uint32(v), nil
}
