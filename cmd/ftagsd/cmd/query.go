package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/0x8000-0000/ftagsd/internal/daemon"
	"github.com/0x8000-0000/ftagsd/internal/output"
)

var queryTypeByName = map[string]daemon.QueryType{
	"symbol":            daemon.QuerySymbol,
	"identify":          daemon.QueryIdentify,
	"identify-extended": daemon.QueryIdentifyExtended,
	"definition":        daemon.QueryDefinition,
	"declaration":       daemon.QueryDeclaration,
	"reference":         daemon.QueryReference,
}

func newQueryCmd() *cobra.Command {
	var (
		project    string
		queryType  string
		qualifier  string
		symbolName string
		fileName   string
		line       uint32
		column     uint32
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query a project's symbol database via the running daemon",
		Long: `Runs one of the six §6.2 query kinds against a project loaded by
the ftagsd daemon:

  symbol             every record for --symbol
  definition          only the definition record(s) for --symbol
  declaration         only the declaration record(s) for --symbol
  reference           only the use record(s) for --symbol
  identify            the record at --file:--line:--column
  identify-extended   identify, plus the record at its definition site`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			qt, ok := queryTypeByName[queryType]
			if !ok {
				return fmt.Errorf("unknown query type %q (want one of symbol, definition, declaration, reference, identify, identify-extended)", queryType)
			}
			return runQuery(cmd.Context(), cmd, project, qt, qualifier, symbolName, fileName, line, column)
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "Project name (required)")
	cmd.Flags().StringVar(&queryType, "type", "symbol", "Query type")
	cmd.Flags().StringVar(&qualifier, "qualifier", "", "Namespace/qualifier filter")
	cmd.Flags().StringVar(&symbolName, "symbol", "", "Symbol name (for symbol/definition/declaration/reference)")
	cmd.Flags().StringVar(&fileName, "file", "", "File path (for identify/identify-extended)")
	cmd.Flags().Uint32Var(&line, "line", 0, "Line number (for identify/identify-extended)")
	cmd.Flags().Uint32Var(&column, "column", 0, "Column number (for identify/identify-extended)")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}

func runQuery(ctx context.Context, cmd *cobra.Command, projectName string, qt daemon.QueryType, qualifier, symbolName, fileName string, line, column uint32) error {
	out := output.New(cmd.OutOrStdout())
	cfg := daemon.DefaultConfig()
	client := daemon.NewClient(cfg)

	cs, found, err := client.Query(ctx, projectName, qt, qualifier, symbolName, fileName, line, column)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	if !found {
		out.Status("", "No results")
		return nil
	}

	for _, rec := range cs.Inflate() {
		out.Status("", fmt.Sprintf("%s  %s:%d:%d", rec.Symbol, rec.File, rec.Line, rec.Column))
	}
	return nil
}
