package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dubline/internal/notifications"
	"dubline/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var notify bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run readiness checks for paths, credentials and external tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			var failures int
			writeLines(out, renderSectionHeader("Preflight", colorize)...)
			for _, r := range preflight.RunAll(cmd.Context(), cfg) {
				kind := statusOK
				if !r.Passed {
					kind = statusError
					failures++
				}
				writeLines(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}

			fmt.Fprintln(out)
			writeLines(out, renderSectionHeader("Dependencies", colorize)...)
			for _, st := range preflight.CheckSystemDeps(cmd.Context(), cfg, nil) {
				kind := statusOK
				detail := st.Path
				if detail == "" {
					detail = st.Command
				}
				if !st.Available {
					detail = st.Detail
					kind = statusError
					if st.Optional {
						kind = statusWarn
					} else {
						failures++
					}
				}
				writeLines(out, renderStatusLine(st.Name, kind, detail, colorize))
			}

			if notify {
				fmt.Fprintln(out)
				writeLines(out, renderSectionHeader("Notifications", colorize)...)
				topic := cfg.Notifications.NtfyTopic
				switch {
				case topic == "":
					writeLines(out, renderStatusLine("ntfy", statusWarn, "not configured", colorize))
				default:
					if err := notifications.NewService(cfg).TestNotification(cmd.Context()); err != nil {
						failures++
						writeLines(out, renderStatusLine("ntfy", statusError, err.Error(), colorize))
					} else {
						writeLines(out, renderStatusLine("ntfy", statusOK, "test sent to "+topic, colorize))
					}
				}
			}

			if failures > 0 {
				return fmt.Errorf("%d checks failed", failures)
			}
			fmt.Fprintln(out, "\nAll checks passed")
			return nil
		},
	}
	cmd.Flags().BoolVar(&notify, "notify", false, "Send a test notification to the configured ntfy topic")
	return cmd
}
