package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var extractJSON bool

var extractCmd = &cobra.Command{
	Use:   "extract <url>",
	Short: "Show the text the summarizer would see for a page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp()
		if err != nil {
			return err
		}
		defer app.Close()
		if err := app.Scripts().Reload(); err != nil {
			return fmt.Errorf("failed to load extraction scripts: %w", err)
		}

		ctx := cmd.Context()
		page, err := app.Source().Fetch(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to fetch %s: %w", args[0], err)
		}
		content := app.Extractor().Extract(ctx, page)

		out := cmd.OutOrStdout()
		if extractJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(content)
		}
		fmt.Fprintln(out, titleStyle.Render(content.Title))
		fmt.Fprintln(out, urlStyle.Render(content.SourceURL))
		fmt.Fprintln(out, labelStyle.Render("kind: ")+string(content.Kind))
		fmt.Fprintln(out)
		if !content.HasBody() {
			fmt.Fprintln(out, "(no usable content)")
			return nil
		}
		fmt.Fprintln(out, content.Text())
		return nil
	},
}

func init() {
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "Print the extraction result as JSON")
	rootCmd.AddCommand(extractCmd)
}
