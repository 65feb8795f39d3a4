package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fefal-etl/internal/pipeline"
	"github.com/fefal-etl/internal/sheet"
)

func createRunCmd() *cobra.Command {
	var (
		output      string
		summaryPath string
		sheetName   string
		year        int
	)

	cmd := &cobra.Command{
		Use:   "run [survey.xlsx|survey.csv]",
		Short: "Clean one survey and write the result workbook",
		Long: `Runs the whole pipeline over a survey spreadsheet: column resolution, entity validation,
registry matching and deduplication. The result workbook has one sheet per column group,
the combined view, the duplicates, the unmatched entities and the removed rows.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			if year > 0 {
				cfg.Year = year
			}
			if output == "" {
				base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
				output = filepath.Join(filepath.Dir(input), base+"_limpo.xlsx")
			}

			table, err := sheet.Read(input, sheet.ReadOptions{Sheet: sheetName, TimeLayouts: cfg.TimeLayouts})
			if err != nil {
				return err
			}

			res, err := openResources(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer res.Close()

			loader := &pipeline.Loader{Config: cfg, Registry: res.registry, Store: res.store}
			in, err := loader.Load(cmd.Context())
			if err != nil {
				return err
			}

			p, err := pipeline.New(cfg)
			if err != nil {
				return err
			}
			p.SetLogger(log)
			p.SetDebug(debugMode)

			result, err := p.Run(table, in)
			if err != nil {
				return err
			}

			if err := result.Workbook().Save(output); err != nil {
				return err
			}
			log.Info().Str("output", output).Msg("workbook written")

			return writeSummary(result.Summary(), summaryPath)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "result workbook (default <input>_limpo.xlsx)")
	cmd.Flags().StringVar(&summaryPath, "summary", "-", "summary YAML file, - for stdout, empty to skip")
	cmd.Flags().StringVar(&sheetName, "sheet", "", "worksheet to read (default first)")
	cmd.Flags().IntVar(&year, "year", 0, "survey year (overrides the config)")

	return cmd
}

func writeSummary(s pipeline.Summary, path string) error {
	if path == "" {
		return nil
	}
	out, err := s.YAML()
	if err != nil {
		return fmt.Errorf("failed to render summary: %w", err)
	}
	if path == "-" {
		_, err = os.Stdout.Write(out)
		return err
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}
