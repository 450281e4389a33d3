package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hupe1980/useragents/plugin"
)

const banner = `
  _   _ ___  ___ _ __ __ _  __ _  ___ _ __ | |_ ___
 | | | / __|/ _ \ '__/ _' |/ _' |/ _ \ '_ \| __/ __|
 | |_| \__ \  __/ | | (_| | (_| |  __/ | | | |_\__ \
  \__,_|___/\___|_|  \__,_|\__, |\___|_| |_|\__|___/
                           |___/
`

func newServeCmd(root *rootOptions) *cobra.Command {
	ov := &overrides{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load plugins and serve the agent API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if err := ov.apply(cmd, cfg); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			color.New(color.FgCyan).Fprint(out, banner)
			color.New(color.FgHiBlack).Fprintf(out, "    version: %s\n\n", root.version)

			svc, err := newService(cmd, cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			scheme := "http"
			if svc.TLSEnabled() {
				scheme = "https"
			}

			printField(out, "Plugins", cfg.Plugins.Dir)
			printField(out, "Listen", fmt.Sprintf("%s://%s", scheme, svc.Addr()))
			printField(out, "Agents", fmt.Sprintf("%d", svc.Registry().Len()))
			printFailures(out, svc.Report())
			fmt.Fprintln(out)

			return svc.Run(cmd.Context())
		},
	}

	ov.bind(cmd, true)

	return cmd
}

func printField(out io.Writer, label, value string) {
	color.New(color.FgGreen).Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "%-9s %s\n", label+":", value)
}

func printFailures(out io.Writer, report *plugin.Report) {
	yellow := color.New(color.FgYellow)
	for _, f := range report.Failures {
		yellow.Fprint(out, "    ✗ ")
		fmt.Fprintf(out, "%s\n", f.Error())
	}
}
