package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	searchLimit int
	searchJSON  bool
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Manage the retrieval knowledge base",
}

var knowledgeIngestCmd = &cobra.Command{
	Use:   "ingest <path>",
	Short: "Index a markdown file or every markdown file in a directory",
	Long: `Index knowledge documents. Each paragraph becomes one passage; YAML
frontmatter is skipped. The index lives in memory, so this is mostly
useful to check how a document is chunked; set HEALTHRAG_KNOWLEDGE_PATH
to seed the index for report runs.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		res, err := a.Knowledge.Ingest(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d passage(s) from %s (%d total)\n", res.Chunks, res.Path, res.Total)
		return nil
	},
}

var knowledgeSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the knowledge base",
	Long: `Search the knowledge base seeded from HEALTHRAG_KNOWLEDGE_PATH.

Examples:
  HEALTHRAG_KNOWLEDGE_PATH=./knowledge healthrag knowledge search "sleep"
  healthrag knowledge search "hydration" -n 5 --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp(cmd.Context())
		if err != nil {
			return err
		}
		hits, err := a.Knowledge.Search(cmd.Context(), args[0], searchLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if searchJSON {
			return printJSON(out, hits)
		}
		if len(hits) == 0 {
			fmt.Fprintln(out, "No results found.")
			return nil
		}
		fmt.Fprintf(out, "Found %d results:\n\n", len(hits))
		for i, h := range hits {
			fmt.Fprintf(out, "%d. %s\n", i+1, defaultTheme.hintStyle().Render(fmt.Sprintf("[%.3f] %s", h.Score, h.Source)))
			fmt.Fprintf(out, "   %s\n\n", h.Text)
		}
		return nil
	},
}

func init() {
	knowledgeSearchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "max results (default from configuration)")
	knowledgeSearchCmd.Flags().BoolVar(&searchJSON, "json", false, "print hits as JSON")

	knowledgeCmd.AddCommand(knowledgeIngestCmd)
	knowledgeCmd.AddCommand(knowledgeSearchCmd)
}
