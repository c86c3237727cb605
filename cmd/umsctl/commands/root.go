// Package commands implements the CLI commands for the umsctl client.
package commands

import (
	"time"

	"github.com/marmos91/umsd/cmd/umsctl/cmdutil"
	disccmd "github.com/marmos91/umsd/cmd/umsctl/commands/disc"
	"github.com/marmos91/umsd/internal/adapter/usb"
	"github.com/marmos91/umsd/pkg/transport"
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "umsctl",
	Short: "umsd client",
	Long: `umsctl talks to a running umsd.

Sector and disc commands go through the unix socket; status and health
come from the HTTP status API.

Use "umsctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cmdutil.Flags.Socket, _ = cmd.Flags().GetString("socket")
		cmdutil.Flags.ServerURL, _ = cmd.Flags().GetString("server")
		cmdutil.Flags.Device, _ = cmd.Flags().GetString("device")
		cmdutil.Flags.Output, _ = cmd.Flags().GetString("output")
		cmdutil.Flags.NoColor, _ = cmd.Flags().GetBool("no-color")
		cmdutil.Flags.Timeout, _ = cmd.Flags().GetDuration("timeout")
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().String("socket", transport.DefaultSocketPath, "Service socket path")
	rootCmd.PersistentFlags().String("server", cmdutil.DefaultServerURL, "Status API URL")
	rootCmd.PersistentFlags().String("device", usb.DefaultDeviceName, "Device name to open")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format (table|json|yaml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().Duration("timeout", 30*time.Second, "Per-command timeout (0 disables)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(unitCmd)
	rootCmd.AddCommand(disccmd.Cmd)
}
