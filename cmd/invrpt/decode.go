package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bakemark/invrpt/internal/dibol/data"
	"github.com/bakemark/invrpt/internal/ui"
)

var decodeCmd = &cobra.Command{
	Use:     "decode <file>",
	GroupID: "data",
	Short:   "Decode an INVPRT data file without storing it",
	Long: `Decode a fixed-width INVPRT data file with the configured schema.

Prints the number of headers, detail lines and purchase orders found, or
the decoded rows with --json.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		asJSON, _ := cmd.Flags().GetBool("json")

		a := openApp()
		defer a.Close()

		batch, err := data.New(a.loadSchema()).DecodeFile(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(batch); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}

		fmt.Printf("%s Decoded %s\n", ui.RenderPass("✓"), args[0])
		fmt.Printf("   Headers: %d\n", len(batch.Headers))
		fmt.Printf("   Details: %d\n", len(batch.Details))
		fmt.Printf("   Purchase orders: %d\n", len(batch.PurchaseOrders))
	},
}

func init() {
	decodeCmd.Flags().Bool("json", false, "Print decoded rows as JSON")
	rootCmd.AddCommand(decodeCmd)
}
