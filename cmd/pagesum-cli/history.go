package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vrsandeep/pagesum-go/internal/models"
)

var (
	historyLimit  int
	historyFormat string
	historyBodies bool
)

// historyRecord is the export shape of one summary.
type historyRecord struct {
	URL       string    `json:"url" yaml:"url"`
	Title     string    `json:"title" yaml:"title"`
	Summary   string    `json:"summary" yaml:"summary"`
	Body      string    `json:"body,omitempty" yaml:"body,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent summaries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		entries, err := app.Store().RecentHistory(historyLimit)
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
		return writeHistory(cmd.OutOrStdout(), entries, historyFormat, historyBodies)
	},
}

func writeHistory(out io.Writer, entries []models.HistoryEntry, format string, bodies bool) error {
	records := make([]historyRecord, 0, len(entries))
	for _, e := range entries {
		r := historyRecord{URL: e.URL, Title: e.Title, Summary: e.Summary, CreatedAt: e.CreatedAt}
		if bodies {
			r.Body = e.Body
		}
		records = append(records, r)
	}

	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case "yaml", "yml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(records)
	case "", "text":
		if len(records) == 0 {
			fmt.Fprintln(out, "No summaries yet.")
			return nil
		}
		for _, r := range records {
			title := r.Title
			if title == "" {
				title = r.URL
			}
			fmt.Fprintln(out, titleStyle.Render(title)+" "+dateStyle.Render(r.CreatedAt.Local().Format("2006-01-02 15:04")))
			fmt.Fprintln(out, urlStyle.Render(r.URL))
			fmt.Fprintln(out, r.Summary)
			if r.Body != "" {
				fmt.Fprintln(out, labelStyle.Render("body: ")+r.Body)
			}
			fmt.Fprintln(out)
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
	}
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of summaries to show")
	historyCmd.Flags().StringVarP(&historyFormat, "format", "f", "text", "Output format (text, json, yaml)")
	historyCmd.Flags().BoolVar(&historyBodies, "bodies", false, "Include the extracted page text")
	rootCmd.AddCommand(historyCmd)
}
