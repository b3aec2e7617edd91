package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/psantana5/ctime/internal/config"
	"github.com/psantana5/ctime/internal/sysinfo"
)

var infoJSON bool

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show host facts relevant to sizing a batch",
	Long: `Info prints CPU, memory and load information for this host. Pinned
workers each occupy an OS thread, so the CPU count and load help pick a
sensible --threads value.`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "output as JSON")
}

func runInfo(cmd *cobra.Command, args []string) error {
	h, err := sysinfo.Detect(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to detect host: %w", err)
	}

	out := cmd.OutOrStdout()
	if infoJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(h)
	}

	table := tablewriter.NewWriter(out)
	table.Header("Property", "Value")

	table.Append([]string{"Host", h.Hostname})
	table.Append([]string{"OS", fmt.Sprintf("%s/%s %s", h.OS, h.Architecture, h.Platform)})
	if h.KernelVersion != "" {
		table.Append([]string{"Kernel", h.KernelVersion})
	}
	table.Append([]string{"CPU", fmt.Sprintf("%s (%d logical, %d physical)", h.CPUModel, h.LogicalCPUs, h.PhysicalCPUs)})
	table.Append([]string{"GOMAXPROCS", fmt.Sprintf("%d", h.GoMaxProcs)})
	table.Append([]string{"Memory", fmt.Sprintf("%s available of %s", sysinfo.FormatBytes(h.MemAvailable), sysinfo.FormatBytes(h.MemTotal))})
	table.Append([]string{"Load", fmt.Sprintf("%.2f %.2f %.2f", h.Load1, h.Load5, h.Load15)})
	table.Append([]string{"Max pinned threads", fmt.Sprintf("%d", config.MaxPinnedThreads)})

	if err := table.Render(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to render table: %v\n", err)
		return err
	}
	return nil
}
