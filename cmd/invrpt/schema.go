package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bakemark/invrpt/internal/dibol/schema"
)

var schemaCmd = &cobra.Command{
	Use:     "schema [file.DEF]",
	GroupID: "data",
	Short:   "Print the record layouts of a DIBOL .DEF file",
	Long: `Parse a DIBOL .DEF file and print its record layouts.

Formats:
  json      indented JSON array of records (default)
  compact   single-line JSON
  yaml      YAML
  messages  one dibol_record_definition message per record, one per line

Without a file argument the configured dibol_schema is used.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		format, _ := cmd.Flags().GetString("format")

		var records []schema.Record
		if len(args) == 1 {
			var err error
			records, err = schema.ParseFile(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		} else {
			a := openApp()
			defer a.Close()
			records = a.loadSchema()
		}

		if err := writeSchema(os.Stdout, records, format); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func writeSchema(w io.Writer, records []schema.Record, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case "compact":
		return json.NewEncoder(w).Encode(records)
	case "yaml":
		return writeYAML(w, records)
	case "messages":
		enc := json.NewEncoder(w)
		for _, def := range schema.Definitions(records) {
			if err := enc.Encode(def); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("unknown format %q (want json, compact, yaml or messages)", format)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func init() {
	schemaCmd.Flags().StringP("format", "f", "json", "Output format: json, compact, yaml, messages")
	rootCmd.AddCommand(schemaCmd)
}
