package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/dd2db/internal/dump"
	"github.com/JonMunkholm/dd2db/internal/schema"
)

func newTablesCmd(a *app) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List the exported tables and their columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defs := a.reg.Tables()
			if kind != "" {
				k, err := dump.ParseKind(kind)
				if err != nil {
					return err
				}
				defs = a.reg.TablesFor(k.String())
			}

			rows := make([][]string, 0, len(defs))
			for _, def := range defs {
				rows = append(rows, []string{def.Name, def.Group, keyOf(def), strings.Join(def.Columns(), ",")})
			}
			printTable(cmd.OutOrStdout(), []string{"table", "kind", "key", "columns"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Only list the tables of one kind")
	return cmd
}

func keyOf(def schema.TableDef) string {
	if def.Primary {
		return "id"
	}
	return def.ForeignKey
}
