package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"counseling-intake/internal/classify"
	"counseling-intake/internal/config"
	"counseling-intake/internal/domain"
	"counseling-intake/internal/scoring"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewScoreCmd scores one answer sequence offline, without storing anything.
func NewScoreCmd(configPath *string) *cobra.Command {
	var (
		fill    string
		asJSON  bool
		answers string
	)
	cmd := &cobra.Command{
		Use:   "score <instrument-id> [answer...]",
		Short: "Score and classify an answer sequence",
		Example: `  counseling-intake score assessment-3 --fill 2
  counseling-intake score assessment-6 --answers 3,3,2,1,0,5,4,3,2,1,0,1,2,3,4,5,4,3,2,1`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			cat, err := loadCatalog(cfg)
			if err != nil {
				return err
			}
			in, err := cat.Get(args[0])
			if err != nil {
				return err
			}

			values := args[1:]
			if answers != "" {
				values = append(values, strings.Split(answers, ",")...)
			}
			if fill != "" {
				values = make([]string, len(in.Questions))
				for i := range values {
					values[i] = fill
				}
			}

			score, err := scoring.NewEngine(cat).Score(in.ID, values)
			if err != nil {
				return err
			}
			classifier := classify.Default()
			level := classifier.LevelOf(score)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Score domain.Score `json:"score"`
					Level domain.Level `json:"level"`
				}{score, level})
			}
			printScore(cmd.OutOrStdout(), in.Name, score, level)
			return nil
		},
	}
	cmd.Flags().StringVar(&fill, "fill", "", "answer every question with this option value")
	cmd.Flags().StringVar(&answers, "answers", "", "comma-separated option values")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func printScore(w io.Writer, name string, score domain.Score, level domain.Level) {
	bold := color.New(color.Bold)

	bold.Fprintf(w, "%s\n", name)
	fmt.Fprintf(w, "  Raw score: %g\n", score.RawScore)
	if score.StandardScore != nil {
		fmt.Fprintf(w, "  Standard score: %g\n", *score.StandardScore)
	}
	if score.NormalizedScore != nil {
		fmt.Fprintf(w, "  Normalized: %d/100\n", *score.NormalizedScore)
	}
	if len(score.Subscales) > 0 {
		names := make([]string, 0, len(score.Subscales))
		for n := range score.Subscales {
			names = append(names, n)
		}
		sort.Strings(names)
		fmt.Fprintf(w, "  Subscales:\n")
		for _, n := range names {
			fmt.Fprintf(w, "    %-28s %g\n", n, score.Subscales[n])
		}
	}
	fmt.Fprintf(w, "  Level: ")
	levelColor(level.Color).Fprintf(w, "%s\n", level.Label)
}
