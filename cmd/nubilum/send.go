package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nubilum/nubilum/comm"
	"github.com/nubilum/nubilum/internal/config"
	"github.com/nubilum/nubilum/jsonv"
	"github.com/nubilum/nubilum/push"
)

var (
	sendAddr       string
	sendHeader     string
	sendImportance int
	sendNotify     bool
	sendJSON       bool
	sendNoWait     bool
	sendTimeout    time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send [flags] content",
	Short: "Send one envelope",
	Long: `Send one envelope to a push server and print the reply.

Content is sent as a string unless --json is given, in which case it is
parsed with the client strategy first.

Examples:
  nubilum send "build finished"
  nubilum send --json --header alert --notify '{"job": 42, "ok": false}'`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVar(&sendAddr, "addr", "", "server address (default from config)")
	sendCmd.Flags().StringVar(&sendHeader, "header", "msg", "envelope header")
	sendCmd.Flags().IntVar(&sendImportance, "importance", -1, "envelope importance (default from config)")
	sendCmd.Flags().BoolVar(&sendNotify, "notify", false, "ask the receiver to raise a notification")
	sendCmd.Flags().BoolVar(&sendJSON, "json", false, "parse content as JSON")
	sendCmd.Flags().BoolVar(&sendNoWait, "no-wait", false, "do not wait for the acknowledgement")
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 10*time.Second, "time to wait for the acknowledgement")
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr)

	strategy, err := config.ParseStrategy(cfg.Client.Strategy)
	if err != nil {
		return err
	}

	content := jsonv.String(args[0])
	if sendJSON {
		if content, err = jsonv.Parse(args[0], strategy); err != nil {
			return fmt.Errorf("content: %w", err)
		}
	}

	importance := sendImportance
	if importance < 0 {
		importance = cfg.Client.Importance
	}
	addr := sendAddr
	if addr == "" {
		addr = cfg.Client.Address
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), sendTimeout)
	defer cancel()

	c, err := comm.Dial(ctx, addr, comm.ClientOptions{
		Strategy:    strategy,
		DialTimeout: cfg.Client.DialTimeout,
	}, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	p := push.New(sendHeader, importance, content, sendNotify)
	if sendNoWait {
		return c.Send(p)
	}

	reply, err := c.SendAndWait(ctx, p)
	if reply != nil {
		fmt.Fprintln(cmd.OutOrStdout(), reply)
	}
	return err
}
