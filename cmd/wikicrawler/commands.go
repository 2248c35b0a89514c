package main

import (
	"fmt"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/PentesterFlow/WikiCrawler/internal/logger"
	"github.com/PentesterFlow/WikiCrawler/internal/report"
	"github.com/PentesterFlow/WikiCrawler/internal/wiki"
)

func newShowCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <title>",
		Short: "Print a stored page record",
		Example: heredoc.Doc(`
			$ wikicrawler show Mario
			$ wikicrawler show "Super Mario Bros." --store sqlite
		`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			return showPage(cmd.Context(), cmd.OutOrStdout(), cfg, args[0])
		},
	}
}

func newRelatedCmd(g *globalFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "related <title>",
		Short: "List pages Wikipedia considers related",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			client := wiki.NewClient(cfg.Related)
			titles, err := client.Related(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, t := range titles {
				if limit > 0 && i == limit {
					break
				}
				fmt.Fprintln(out, t)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", relatedShown, "Maximum titles to print (0 for all)")
	return cmd
}

func newReportCmd(g *globalFlags) *cobra.Command {
	var (
		format  string
		outFile string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize the stored pages",
		Long: heredoc.Doc(`
			Build a report from every stored page record: pages per topic and
			per depth. Markdown output includes a mermaid pie chart of topics.
		`),
		Example: heredoc.Doc(`
			$ wikicrawler report
			$ wikicrawler report --format json -o report.json
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			st, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			records, err := st.List(ctx)
			if err != nil {
				return err
			}
			newLogger(g, cfg).Event(logger.DebugLevel).Int("records", len(records)).Msg("Building report")

			out := cmd.OutOrStdout()
			if outFile != "" {
				file, err := os.Create(outFile)
				if err != nil {
					return err
				}
				defer file.Close()
				out = file
			}
			return report.NewWriter(out, f).Write(report.FromRecords(records))
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "Output format: markdown or json")
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "Write to file instead of stdout")
	return cmd
}
