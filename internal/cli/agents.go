package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type agentsOutput struct {
	Agents   []agentEntry `json:"agents"`
	Failures []string     `json:"failures,omitempty"`
}

type agentEntry struct {
	Name   string `json:"name"`
	Origin string `json:"origin,omitempty"`
}

func newAgentsCmd(root *rootOptions) *cobra.Command {
	var (
		ov       = &overrides{}
		jsonFlag bool
	)

	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Load plugins and list the registered agents",
		Long:  `Runs the load phase without serving and prints every registered agent with the unit that registered it, followed by units that failed to load.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if err := ov.apply(cmd, cfg); err != nil {
				return err
			}

			svc, err := newService(cmd, cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			var result agentsOutput
			for _, e := range svc.Registry().Entries() {
				result.Agents = append(result.Agents, agentEntry{Name: e.Name, Origin: e.Origin})
			}
			for _, f := range svc.Report().Failures {
				result.Failures = append(result.Failures, f.Error())
			}

			out := cmd.OutOrStdout()

			if jsonFlag {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tORIGIN")
			for _, a := range result.Agents {
				fmt.Fprintf(w, "%s\t%s\n", a.Name, a.Origin)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			printFailures(out, svc.Report())

			return nil
		},
	}

	ov.bind(cmd, false)
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Output in JSON format")

	return cmd
}
