package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/services"
)

type serviceView struct {
	Name     string   `json:"name"`
	Port     string   `json:"port"`
	URL      string   `json:"url"`
	Database string   `json:"database,omitempty"`
	Prefixes []string `json:"prefixes,omitempty"`
}

func NewServicesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "List the services, their ports and databases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			views := make([]serviceView, 0, len(services.All))
			for _, s := range services.All {
				views = append(views, serviceView{
					Name: s.Name, Port: s.Port, URL: s.DefaultURL(), Database: s.Database, Prefixes: s.Prefixes,
				})
			}
			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(views)
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPORT\tDATABASE\tROUTES")
			for _, v := range views {
				db := v.Database
				if db == "" {
					db = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.Name, v.Port, db, strings.Join(v.Prefixes, ","))
			}
			return w.Flush()
		},
	}
}
