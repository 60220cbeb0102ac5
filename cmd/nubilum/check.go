package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nubilum/nubilum/jsonv"
	"github.com/nubilum/nubilum/push"
)

var checkComments bool

var checkCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Check documents against the envelope shape",
	Long: `Read back-to-back JSON documents and report, for each one, whether
it is a valid push envelope. Exits non-zero when any document fails.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().BoolVar(&checkComments, "comments", false, "accept // and /* */ comments")
}

func runCheck(cmd *cobra.Command, args []string) error {
	r, err := openInput(args, cmd.InOrStdin())
	if err != nil {
		return err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	docs, _, perr := jsonv.ParseMulti(string(data), inputStrategy(checkComments))

	out := cmd.OutOrStdout()
	bad := 0
	for i, d := range docs {
		p, err := push.FromValue(d)
		if err != nil {
			bad++
			fmt.Fprintf(out, "%d: %v\n", i+1, err)
			continue
		}
		fmt.Fprintf(out, "%d: ok id=%d header=%q\n", i+1, p.ID(), p.Header())
	}

	if perr != nil {
		return fmt.Errorf("parse document %d: %w", len(docs)+1, perr)
	}
	if bad > 0 {
		return fmt.Errorf("%d of %d documents are not valid envelopes", bad, len(docs))
	}
	return nil
}
