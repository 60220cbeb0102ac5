package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nubilum/nubilum/jsonv"
)

var (
	fmtComments bool
	fmtHash     bool
)

var fmtCmd = &cobra.Command{
	Use:   "fmt [file]",
	Short: "Print JSON documents in canonical form",
	Long: `Read back-to-back JSON documents and print each one in canonical
form on its own line: object keys sorted, ", " and ": " separators,
numbers in shortest round-trip form.

With --hash each line is prefixed with the xxHash64 of the canonical text.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFmt,
}

func init() {
	rootCmd.AddCommand(fmtCmd)

	fmtCmd.Flags().BoolVar(&fmtComments, "comments", false, "accept // and /* */ comments")
	fmtCmd.Flags().BoolVar(&fmtHash, "hash", false, "prefix each document with its hash")
}

func inputStrategy(comments bool) jsonv.Strategy {
	if comments {
		return jsonv.Comments
	}
	return jsonv.Standard
}

func runFmt(cmd *cobra.Command, args []string) error {
	r, err := openInput(args, cmd.InOrStdin())
	if err != nil {
		return err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	docs, _, err := jsonv.ParseMulti(string(data), inputStrategy(fmtComments))

	out := cmd.OutOrStdout()
	for _, d := range docs {
		canonical := jsonv.Dump(d)
		if fmtHash {
			fmt.Fprintf(out, "%016x ", jsonv.HashString(canonical))
		}
		fmt.Fprintln(out, canonical)
	}

	if err != nil {
		return fmt.Errorf("parse document %d: %w", len(docs)+1, err)
	}
	return nil
}
