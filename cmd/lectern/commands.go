package main

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/lectern/internal/config"
)

// --- search ---

type searchResult struct {
	Title      string `json:"title"`
	Link       string `json:"link"`
	Summary    string `json:"summary"`
	IsAcademic bool   `json:"is_academic"`
	Domain     string `json:"domain"`
}

type searchResponse struct {
	Query   string         `json:"query"`
	Context string         `json:"context"`
	Results []searchResult `json:"results"`
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run the source aggregator against a running server",
	Long: `Run the source aggregator against a running server and print the ranked sources.

Examples:
  lectern search "graph coloring" --field Combinatorics
  lectern search "protein folding" --field Biochemistry --name "Frances Arnold" -n 3
  lectern search "monads" --context`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		field, _ := cmd.Flags().GetString("field")
		name, _ := cmd.Flags().GetString("name")
		n, _ := cmd.Flags().GetInt("n")
		showContext, _ := cmd.Flags().GetBool("context")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), searchPath(strings.Join(args, " "), field, name, n))
		if err != nil {
			return err
		}

		var result searchResponse
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if showContext {
			fmt.Fprint(cmd.OutOrStdout(), result.Context)
			return nil
		}
		printSearchResults(cmd.OutOrStdout(), result.Results)
		return nil
	},
}

func searchPath(query, field, name string, n int) string {
	q := url.Values{}
	q.Set("q", query)
	if field != "" {
		q.Set("field", field)
	}
	if name != "" {
		q.Set("name", name)
	}
	if n > 0 {
		q.Set("n", strconv.Itoa(n))
	}
	return "/api/search?" + q.Encode()
}

func printSearchResults(w io.Writer, results []searchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No sources found.")
		return
	}
	for i, r := range results {
		label := colorize(colorBold, fmt.Sprintf("[Source %d]", i+1))
		if r.IsAcademic {
			label += " " + colorize(colorCyan, "academic")
		}
		fmt.Fprintf(w, "\n%s %s\n", label, r.Title)
		fmt.Fprintf(w, "  %s\n", r.Link)
		summary := r.Summary
		if len(summary) > 300 {
			summary = summary[:300] + "..."
		}
		if summary != "" {
			fmt.Fprintf(w, "  %s\n", summary)
		}
	}
}

func init() {
	searchCmd.Flags().String("field", "", "academic field used to focus the search")
	searchCmd.Flags().String("name", "", "professor name used in one query variant")
	searchCmd.Flags().IntP("n", "n", 5, "number of sources")
	searchCmd.Flags().Bool("context", false, "print the rendered prompt context instead of the list")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s  (%s)\n", colorize(colorBold, k.Key), k.Value, k.EnvVar)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value in the config file.\n\nValid keys:\n  " +
		strings.Join(config.ValidKeys(), "\n  "),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
