// Package main provides the xpost CLI entrypoint.
package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/joss/xpost/internal/config"
	"github.com/joss/xpost/internal/logging"
)

var (
	version = "0.1.0"
	pretty  = true
	jsonOut = false
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "xpost",
		Short: "Draft posts and replies for X with an LLM, then post them from your browser",
		Long: `xpost: LLM-assisted posting for X (Twitter).

Usage modes:
  xpost popup                 Interactive popup (draft, edit, post)
  xpost generate <topic>      Draft a new post
  xpost reply [context]       Draft a reply to the post open in the browser
  xpost post [content]        Post content (or the saved draft)

Configure a provider first: xpost config set-key openai sk-...`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetLevel(logging.ParseLevel(config.Env().LogLevel))
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				color.NoColor = true
			}
			if jsonOut {
				pretty = false
			}
		},
	}

	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", true, "Pretty print output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "compose", Title: "Compose:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
		&cobra.Group{ID: "debug", Title: "Debugging:"},
	)

	for _, c := range []*cobra.Command{popupCmd(), generateCmd(), replyCmd(), postCmd(), draftCmd()} {
		c.GroupID = "compose"
		rootCmd.AddCommand(c)
	}

	cfg := configCmd()
	cfg.GroupID = "setup"
	rootCmd.AddCommand(cfg)

	pg := pageCmd()
	pg.GroupID = "debug"
	rootCmd.AddCommand(pg)

	rootCmd.AddCommand(versionCmd())

	os.Exit(exitCode(rootCmd.Execute()))
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("xpost %s\n", version)
		},
	}
}
