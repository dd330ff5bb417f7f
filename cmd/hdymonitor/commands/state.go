package commands

import (
	"fmt"
	"os"

	"hdymonitor/internal/frontier"
	"hdymonitor/lib/timezone"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the persisted product snapshot and config id frontier.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		products, ok := productStore(cfg).Load()
		if !ok {
			fmt.Printf("no product snapshot at %s\n", cfg.Products.StoragePath)
		} else {
			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"Name", "Price", "Renewal", "Purchasable", "Config", "Status"})
			for _, p := range products {
				t.AppendRow(table.Row{
					p.Name,
					p.Price,
					p.RenewalInfo,
					p.Purchasable,
					fmt.Sprintf("%s | %s | %s | %s", p.Core, p.Memory, p.SystemDisk, p.Bandwidth),
					p.StatusMessage,
				})
			}
			t.AppendFooter(table.Row{"", "", "", "", "Total", len(products)})
			t.SetStyle(table.StyleRounded)
			t.Render()
		}

		record, ok := frontier.NewStore(cfg.ConfigID.StoragePath).Load()
		if !ok || record.LastID <= 0 {
			fmt.Printf("no config id frontier at %s\n", cfg.ConfigID.StoragePath)
			return
		}
		fmt.Printf("last config id: %d (updated %s)\n", record.LastID, timezone.Format(record.UpdatedAt))
	},
}

func init() {
	rootCmd.AddCommand(stateCmd)
}
