package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/access-cli/internal/category"
)

var categoriesFormat string

var categoriesCmd = &cobra.Command{
	Use:   "categories [name...]",
	Short: "List the built-in service categories and their OSM tag filters",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listCategories(cmd.OutOrStdout(), categoriesFormat, args...)
	},
}

// listCategories prints the named definitions, or all of them when names is
// empty.
func listCategories(out io.Writer, format string, names ...string) error {
	defs := category.Definitions()
	if len(names) > 0 {
		defs = defs[:0]
		for _, name := range names {
			d, err := category.Lookup(name)
			if err != nil {
				return err
			}
			defs = append(defs, d)
		}
	}
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(defs); err != nil {
			return eris.Wrap(err, "encode categories")
		}
		return enc.Close()
	case "table", "":
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "CATEGORY\tTAGS")
		_, _ = fmt.Fprintln(w, "--------\t----")
		for _, d := range defs {
			_, _ = fmt.Fprintf(w, "%s\t%s\n", d.Name, formatTags(d.Tags))
		}
		return w.Flush()
	}
	return eris.Errorf("unknown format %q (want table or yaml)", format)
}

// formatTags renders key=v1|v2 pairs sorted by key.
func formatTags(tags map[string][]string) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + strings.Join(tags[k], "|")
	}
	return strings.Join(parts, " ")
}

func init() {
	categoriesCmd.Flags().StringVar(&categoriesFormat, "format", "table", "output format: table or yaml")
	rootCmd.AddCommand(categoriesCmd)
}
