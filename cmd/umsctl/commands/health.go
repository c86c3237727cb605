package commands

import (
	"fmt"
	"os"

	"github.com/marmos91/umsd/cmd/umsctl/cmdutil"
	"github.com/marmos91/umsd/internal/cli/output"
	"github.com/spf13/cobra"
)

// HealthResult is the outcome of the liveness and readiness probes.
type HealthResult struct {
	Live   bool   `json:"live" yaml:"live"`
	Ready  bool   `json:"ready" yaml:"ready"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe service liveness and readiness",
	Long: `Check that umsd answers its status API and that the selected unit has
media. Exits non-zero when the service is not live.`,
	RunE: runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	ctx, cancel := cmdutil.Context(cmd.Context())
	defer cancel()

	api := cmdutil.APIClient()
	if err := api.Health(ctx); err != nil {
		return fmt.Errorf("service not live: %w", err)
	}
	ready, reason, err := api.Ready(ctx)
	if err != nil {
		return fmt.Errorf("readiness check failed: %w", err)
	}
	res := HealthResult{Live: true, Ready: ready, Reason: reason}

	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}
	if format != output.FormatTable {
		return output.NewPrinter(os.Stdout, format, false).Print(res)
	}

	p := output.NewPrinter(os.Stdout, format, !cmdutil.IsColorDisabled())
	if ready {
		p.Success("live, ready")
		return nil
	}
	p.Warning(fmt.Sprintf("live, not ready: %s", reason))
	return nil
}
