package commands

import (
	"fmt"
	"strconv"
	"strings"

	"hdymonitor/internal/components/telemetry"
	"hdymonitor/lib/restyutil"
	"hdymonitor/lib/serviceutil"

	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe <id>",
	Short: "Fetch a single config page and print what was extracted from it.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			serviceutil.Fatal("invalid config id", err)
		}

		cfg := loadConfig()
		var dump restyutil.Output
		if dir, _ := cmd.Flags().GetString("dump"); dir != "" {
			out, err := restyutil.NewFilesystemOutput(dir)
			if err != nil {
				serviceutil.Fatal("failed to create dump directory", err)
			}
			dump = out
		}
		client := newClient(cfg, dump, telemetry.SlogAPI{})

		details, ok, err := client.ProbeConfig(cmd.Context(), id)
		if err != nil {
			serviceutil.Fatal("failed to probe config", err)
		}
		fmt.Println(client.ConfigURL(id))
		if !ok {
			fmt.Println("no configuration content found")
			return
		}
		fmt.Println(strings.Join(details.Lines(), "\n"))
	},
}

func init() {
	probeCmd.Flags().String("dump", "", "Write the raw http exchanges into this directory.")
	rootCmd.AddCommand(probeCmd)
}
