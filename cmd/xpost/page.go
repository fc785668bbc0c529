package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joss/xpost/internal/config"
	"github.com/joss/xpost/internal/page"
	"github.com/joss/xpost/internal/protocol"
)

func pageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "page",
		Short: "Inspect the browser tab the page agent drives",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "inspect",
		Short: "Show the URL, post id and post the agent sees",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			pc, err := protocol.CallGetCurrentPostID(ctx, a.page)
			if err != nil {
				return err
			}
			if jsonOut {
				printJSON(pc)
				return nil
			}
			fmt.Print(renderer().PostContext(pc))
			return nil
		},
	})

	var timeout time.Duration
	wait := &cobra.Command{
		Use:   "wait <selector-name|css>",
		Short: "Wait for an element to appear",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			start := time.Now()
			if _, err := a.agent.WaitForElement(ctx, args[0], timeout); err != nil {
				return err
			}
			fmt.Printf("found %s after %s\n", a.agent.Selectors().Resolve(args[0]), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	wait.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "How long to wait")
	cmd.AddCommand(wait)

	cmd.AddCommand(&cobra.Command{
		Use:   "selectors",
		Short: "List the selector table (defaults merged with XPOST_SELECTORS)",
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := page.LoadSelectors(config.Env().SelectorsFile)
			if err != nil {
				return err
			}
			fmt.Print(renderer().Selectors(sel))
			return nil
		},
	})
	return cmd
}
