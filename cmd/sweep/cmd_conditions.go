package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/nvandessel/sweep/internal/jobs"
	"github.com/spf13/cobra"
)

func newConditionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "conditions",
		Short: "List the conditions a sweep expands to",
		Long: `List the conditions a sweep expands to, in generation order.

The first axis in the sweep definition varies slowest. Axes whose name
contains __COPY_OVER are appended to the command line verbatim.

Examples:
  sweep conditions                     # Built-in sweep
  sweep conditions --sweep exp.yaml    # Sweep from a file
  sweep conditions --json              # Machine-readable`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadSweep(cmd)
			if err != nil {
				return err
			}
			conds, err := cfg.Expander().Expand()
			if err != nil {
				return err
			}

			if jsonOut {
				type entry struct {
					Index    int               `json:"index"`
					Name     string            `json:"name"`
					Params   map[string]string `json:"params"`
					Verbatim []string          `json:"verbatim"`
				}
				out := make([]entry, len(conds))
				for i, c := range conds {
					params := make(map[string]string)
					for name, v := range c.Params() {
						params[name] = v.String()
					}
					out[i] = entry{Index: c.Index, Name: c.Name(), Params: params, Verbatim: c.Verbatim()}
				}
				return writeJSON(cmd, map[string]any{
					"count":      len(conds),
					"conditions": out,
				})
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, c := range conds {
				fmt.Fprintf(w, "%s\t%s\n", c.Name(), jobs.RenderArgs(c.Params(), c.Verbatim()))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%s conditions across %d axes\n",
				humanize.Comma(int64(len(conds))), len(cfg.Expander().Axes()))
			return nil
		},
	}
}
