package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nubilum/nubilum/comm"
	"github.com/nubilum/nubilum/internal/config"
	"github.com/nubilum/nubilum/jsonv"
	"github.com/nubilum/nubilum/push"
)

const quitCommand = "!quit"

var mobileAddr string

var mobileCmd = &cobra.Command{
	Use:   "mobile",
	Short: "Send stdin lines as envelopes",
	Long: `Read lines from stdin and send each one as an envelope with header
"msg", the configured importance and the line as content. Replies from
the server are printed as they arrive. A line reading !quit disconnects.`,
	Args: cobra.NoArgs,
	RunE: runMobile,
}

func init() {
	rootCmd.AddCommand(mobileCmd)

	mobileCmd.Flags().StringVar(&mobileAddr, "addr", "", "server address (default from config)")
}

func runMobile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr)

	strategy, err := config.ParseStrategy(cfg.Client.Strategy)
	if err != nil {
		return err
	}
	addr := mobileAddr
	if addr == "" {
		addr = cfg.Client.Address
	}

	c, err := comm.Dial(cmd.Context(), addr, comm.ClientOptions{
		Strategy:    strategy,
		DialTimeout: cfg.Client.DialTimeout,
	}, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	out := cmd.OutOrStdout()
	received := make(chan error, 1)
	go func() {
		received <- c.Receive(ctx, func(p *push.Payload) error {
			fmt.Fprintln(out, p)
			return nil
		})
	}()

	return mobileLoop(cmd.InOrStdin(), c, cfg.Client.Importance, received)
}

// mobileLoop sends every input line until !quit, end of input or the
// connection fails.
func mobileLoop(in io.Reader, c *comm.Client, importance int, received <-chan error) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}
			if line == quitCommand {
				return nil
			}
			if err := c.Send(push.New("msg", importance, jsonv.String(line), false)); err != nil {
				return err
			}
		case err := <-received:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("connection lost: %w", err)
		}
	}
}
