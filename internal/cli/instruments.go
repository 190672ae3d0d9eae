package cli

import (
	"fmt"
	"io"

	"counseling-intake/internal/catalog"
	"counseling-intake/internal/classify"
	"counseling-intake/internal/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewInstrumentsCmd lists the catalog with its bands.
func NewInstrumentsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "instruments",
		Short: "List the assessment instruments and their classification bands",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			cat, err := loadCatalog(cfg)
			if err != nil {
				return err
			}
			printInstruments(cmd.OutOrStdout(), cat, classify.Default())
			return nil
		},
	}
}

func printInstruments(w io.Writer, cat *catalog.Catalog, classifier *classify.Classifier) {
	bold := color.New(color.Bold)
	cyan := color.New(color.FgCyan)

	bold.Fprintf(w, "Instrument catalog %s\n\n", cat.Version())
	for _, in := range cat.Instruments() {
		cyan.Fprintf(w, "%-13s", in.ID)
		fmt.Fprintf(w, " %s\n", in.Name)
		fmt.Fprintf(w, "              %d questions, max score %g", len(in.Questions), in.MaxScore())
		if len(in.Subscales) > 0 {
			fmt.Fprintf(w, ", %d subscale rules", len(in.Subscales))
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "              levels: ")
		for i, label := range classifier.Labels(in.ID) {
			if i > 0 {
				fmt.Fprint(w, " > ")
			}
			levelColor(classifier.Color(label)).Fprint(w, label)
		}
		fmt.Fprintln(w)
	}
}

// levelColor maps a level color tag to a terminal color.
func levelColor(tag string) *color.Color {
	switch tag {
	case "red":
		return color.New(color.FgRed, color.Bold)
	case "orange":
		return color.New(color.FgMagenta)
	case "yellow":
		return color.New(color.FgYellow)
	case "blue":
		return color.New(color.FgBlue)
	case "green":
		return color.New(color.FgGreen)
	default:
		return color.New(color.FgWhite)
	}
}
