package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joss/xpost/internal/logging"
	"github.com/joss/xpost/internal/render"
)

func renderWriter() *render.Writer {
	return render.Stdout()
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage provider settings",
	}

	var model string
	setKey := &cobra.Command{
		Use:   "set-key <provider> <api-key>",
		Short: "Store an API key and make the provider active",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()
			return finish(a.ctrl.SaveSettings(ctx, args[0], args[1], model))
		},
	}
	setKey.Flags().StringVar(&model, "model", "", "Model to use (default: provider default)")
	cmd.AddCommand(setKey)

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show stored settings (keys redacted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.ctrl.Settings(ctx)
			if err != nil {
				return err
			}
			if jsonOut {
				out := map[string]any{"activeProvider": s.ActiveProvider}
				providers := map[string]any{}
				for id, ps := range s.PerProvider {
					providers[id] = map[string]string{"apiKey": logging.Redact(ps.APIKey), "model": ps.Model}
				}
				out["perProvider"] = providers
				printJSON(out)
				return nil
			}
			fmt.Print(renderer().Settings(s, a.catalog))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "providers",
		Short: "List providers and models",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if jsonOut {
				printJSON(a.catalog.List())
				return nil
			}
			fmt.Print(renderer().Providers(a.catalog))
			return nil
		},
	})
	return cmd
}
