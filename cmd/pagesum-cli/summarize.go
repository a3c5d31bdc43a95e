package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vrsandeep/pagesum-go/internal/models"
	"github.com/vrsandeep/pagesum-go/internal/presenter"
	"github.com/vrsandeep/pagesum-go/internal/summarize"
)

var (
	summarizeCopy      bool
	summarizeModel     string
	summarizeNoHistory bool
	summarizeAsk       []string
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <url|->",
	Short: "Summarize a web page, or text from stdin with -",
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
		out := cmd.OutOrStdout()
		term := presenter.NewTerminal(out, presenter.SystemClipboard{}, summarizeCopy)

		eng := app.Engine()
		model := summarizeModel
		if model == "" {
			model = app.Config().Model.ID
		}
		if !eng.Ready() || eng.Model() != model {
			if err := eng.Initialize(ctx, model, term.SetProgress); err != nil {
				term.ShowError(summarize.ErrorMessage)
				return fmt.Errorf("failed to load model %s: %w", model, err)
			}
		}

		opts := []summarize.Option{
			summarize.WithSource(app.Source(), app.Extractor()),
			summarize.WithSink(app.Sink()),
		}
		if !summarizeNoHistory {
			opts = append(opts, summarize.WithRecorder(app.Store()))
		}
		ctrl := summarize.New(eng, term, summarize.OptionsFromConfig(app.Config()), opts...)

		if args[0] == "-" {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
			text := string(data)
			err = ctrl.HandleContent(ctx, models.ExtractedContent{SourceURL: "stdin", Body: &text, Kind: models.KindArticle})
			if err != nil {
				return err
			}
		} else if err := ctrl.Summarize(ctx, args[0]); err != nil {
			return err
		}

		for _, q := range summarizeAsk {
			fmt.Fprintln(out, labelStyle.Render("> "+strings.TrimSpace(q)))
			if err := ctrl.Ask(ctx, q); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	summarizeCmd.Flags().BoolVarP(&summarizeCopy, "copy", "c", false, "Copy the finished summary to the clipboard")
	summarizeCmd.Flags().StringVarP(&summarizeModel, "model", "m", "", "Model to load (default: model.id from config)")
	summarizeCmd.Flags().BoolVar(&summarizeNoHistory, "no-history", false, "Do not record the summary in the history database")
	summarizeCmd.Flags().StringArrayVarP(&summarizeAsk, "ask", "a", nil, "Follow-up question to ask after the summary (repeatable)")
	rootCmd.AddCommand(summarizeCmd)
}
