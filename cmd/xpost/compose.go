package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/joss/xpost/internal/domain"
	"github.com/joss/xpost/internal/tui"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func generateCmd() *cobra.Command {
	var (
		modeFlag string
		postNow  bool
	)
	cmd := &cobra.Command{
		Use:   "generate <topic...|->",
		Short: "Draft a post about a topic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, ok := domain.ParseMode(modeFlag)
			if !ok {
				return fmt.Errorf("unknown mode %q (use newPost or reply)", modeFlag)
			}
			input, err := argsOrStdin(args)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()
			a, err := openApp(ctx, postNow || mode == domain.ModeReply)
			if err != nil {
				return err
			}
			defer a.Close()

			content, st := a.ctrl.Generate(ctx, mode, input)
			printDraft(content)
			if postNow && st.OK() {
				return finish(a.ctrl.Post(ctx, content, mode))
			}
			return finish(st)
		},
	}
	cmd.Flags().StringVarP(&modeFlag, "mode", "m", "newPost", "newPost or reply")
	cmd.Flags().BoolVar(&postNow, "post", false, "Post the draft immediately")
	return cmd
}

func replyCmd() *cobra.Command {
	var postNow bool
	cmd := &cobra.Command{
		Use:   "reply [context...|-]",
		Short: "Draft a reply to the post open in the browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			input, err := argsOrStdin(args)
			if err != nil {
				return err
			}
			if input == "" {
				target, st := a.ctrl.ReplyContext(ctx)
				if !st.OK() {
					return finish(st)
				}
				if !jsonOut {
					fmt.Println(target.Preview)
				}
				input = target.Input
			}

			content, st := a.ctrl.Generate(ctx, domain.ModeReply, input)
			printDraft(content)
			if postNow && st.OK() {
				return finish(a.ctrl.Post(ctx, content, domain.ModeReply))
			}
			return finish(st)
		},
	}
	cmd.Flags().BoolVar(&postNow, "post", false, "Post the reply immediately")
	return cmd
}

func postCmd() *cobra.Command {
	var replyFlag bool
	cmd := &cobra.Command{
		Use:   "post [content...|-]",
		Short: "Post content, or the saved draft when none is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			content, err := argsOrStdin(args)
			if err != nil {
				return err
			}
			mode := domain.ModeNewPost
			if replyFlag {
				mode = domain.ModeReply
			}
			if content == "" {
				if d, ok := a.ctrl.Draft(ctx); ok {
					content = d.Generated
					if !cmd.Flags().Changed("reply") {
						mode = d.Mode
					}
				}
			}
			return finish(a.ctrl.Post(ctx, content, mode))
		},
	}
	cmd.Flags().BoolVar(&replyFlag, "reply", false, "Reply to the post open in the browser")
	return cmd
}

func draftCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Show or clear the saved draft",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the saved draft (kept for 5 minutes)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			d, ok := a.ctrl.Draft(ctx)
			if jsonOut {
				printJSON(d)
				return nil
			}
			if !ok {
				fmt.Println("No saved draft")
				return nil
			}
			w := renderWriter()
			w.Header("draft %s", d.ID)
			w.Item("mode:    %s", d.Mode)
			w.Item("saved:   %s ago", time.Since(d.SavedAt()).Round(time.Second))
			w.Item("input:   %s", d.Input)
			if d.LastStatus != "" {
				w.Item("status:  %s", d.LastStatus)
			}
			if d.Generated != "" {
				w.Line()
				fmt.Print(renderer().Draft(d.Generated))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Discard the saved draft",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()
			return finish(a.ctrl.ClearDraft(ctx))
		},
	})
	return cmd
}

func popupCmd() *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "popup",
		Short: "Interactive popup: draft, edit and post",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
				return fmt.Errorf("popup needs a terminal")
			}
			ctx, cancel := signalContext()
			defer cancel()
			a, err := openApp(ctx, !offline)
			if err != nil {
				return err
			}
			defer a.Close()

			return tui.Run(ctx, a.ctrl)
		},
	}
	cmd.Flags().BoolVar(&offline, "no-browser", false, "Draft only, without connecting to the browser")
	return cmd
}

func printDraft(content string) {
	if jsonOut || content == "" {
		return
	}
	fmt.Print(renderer().Draft(content))
}
