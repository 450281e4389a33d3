package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/useragents/client"
	"github.com/hupe1980/useragents/core"
)

func newCallCmd() *cobra.Command {
	var (
		url          string
		instructions string
		insecure     bool
		timeout      time.Duration
		jsonFlag     bool
	)

	cmd := &cobra.Command{
		Use:   "call <agent> <query...>",
		Short: "Send a query to a running server",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(url, func(o *client.Options) {
				o.InsecureSkipVerify = insecure
				o.Timeout = timeout
			})

			resp, err := c.Run(cmd.Context(), core.AgentRequest{
				AgentName:    args[0],
				Instructions: instructions,
				Query:        strings.Join(args[1:], " "),
			})
			if err != nil {
				return err
			}

			if jsonFlag {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(resp)
			}

			fmt.Fprintln(cmd.OutOrStdout(), resp.Response)

			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "https://localhost:443", "Base URL of the server")
	cmd.Flags().StringVar(&instructions, "instructions", "", "Instructions passed to the agent")
	cmd.Flags().BoolVarP(&insecure, "insecure", "k", false, "Skip TLS certificate verification")
	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "Request timeout")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Print the raw JSON response")

	return cmd
}
