// Command plantcare trains the care model and answers catalog, care and
// recommendation queries from the command line.
//
// Usage:
//
//	plantcare train [-config plantcare.yaml] [-cv 5] [-report evaluation.xlsx]
//	plantcare care [-config plantcare.yaml] <plant name>
//	plantcare recommend [-light Bright] [-kids Yes] [-experience Beginner] [-time Low]
//	plantcare list
//	plantcare chart <out.png>
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vineetsista/Plant-Care-Assistant/internal/catalog"
	"github.com/vineetsista/Plant-Care-Assistant/internal/chart"
	"github.com/vineetsista/Plant-Care-Assistant/internal/config"
	"github.com/vineetsista/Plant-Care-Assistant/internal/inference"
	"github.com/vineetsista/Plant-Care-Assistant/internal/recommend"
	"github.com/vineetsista/Plant-Care-Assistant/internal/report"
	"github.com/vineetsista/Plant-Care-Assistant/internal/training"
	"github.com/vineetsista/Plant-Care-Assistant/pkg/errors"
	"github.com/vineetsista/Plant-Care-Assistant/pkg/log"
)

const usage = `usage: plantcare <command> [flags]

commands:
  train       train the care model and publish the artifact bundle
  care        print the care guide of a catalog plant
  recommend   pick a plant for your home
  list        show the collection overview and plant names
  chart       save the category distribution chart
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type command func(cfg *config.Config, fs *flag.FlagSet, stdout io.Writer) error

// run executes one subcommand and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var setup func(fs *flag.FlagSet) command
	switch args[0] {
	case "train":
		setup = trainCmd
	case "care":
		setup = careCmd
	case "recommend":
		setup = recommendCmd
	case "list":
		setup = listCmd
	case "chart":
		setup = chartCmd
	case "-h", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "plantcare: unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	fs := flag.NewFlagSet("plantcare "+args[0], flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "YAML config file (default: $PLANTCARE_CONFIG or ./plantcare.yaml)")
	cmd := setup(fs)
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "plantcare: %v\n", err)
		return 1
	}
	if err := log.SetupLoggerWithWriter(cfg.Log.Level, cfg.Log.Format, stderr); err != nil {
		fmt.Fprintf(stderr, "plantcare: %v\n", err)
		return 1
	}

	if err := cmd(cfg, fs, stdout); err != nil {
		log.GetLoggerWithName("cli").Error("Command failed", err, log.OperationKey, args[0])
		fmt.Fprintf(stderr, "plantcare: %v\n", err)
		return 1
	}
	return 0
}

func trainCmd(fs *flag.FlagSet) command {
	cv := fs.Int("cv", -1, "cross-validation folds (overrides training.cv_folds)")
	reportPath := fs.String("report", "", "write the evaluation to this XLSX file")
	noSave := fs.Bool("dry-run", false, "train and evaluate without publishing artifacts")

	return func(cfg *config.Config, _ *flag.FlagSet, stdout io.Writer) error {
		table, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			return err
		}
		opts := cfg.TrainingOptions()
		if *cv >= 0 {
			opts.CVFolds = *cv
		}
		if *noSave {
			opts.ArtifactDir = ""
		}

		result, err := training.Train(table, opts)
		if err != nil {
			return err
		}

		fmt.Fprintf(stdout, "run %s: %d rows (%d dropped), %d train / %d test\n",
			result.RunID, result.Samples, result.Dropped, result.TrainSize, result.TestSize)
		for _, ev := range result.Evaluation {
			fmt.Fprintf(stdout, "\n[%s]\n%s", ev.Target, ev.Report)
		}
		if result.CV != nil {
			fmt.Fprintf(stdout, "\ncross-validation (%d folds): %.3f ± %.3f\n", result.CV.Folds, result.CV.Mean, result.CV.Std)
		}
		if result.ArtifactDir != "" {
			fmt.Fprintf(stdout, "\nartifacts: %s\n", result.ArtifactDir)
		}
		if *reportPath != "" {
			if err := report.WriteXLSX(*reportPath, result); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "report: %s\n", *reportPath)
		}
		return nil
	}
}

func careCmd(_ *flag.FlagSet) command {
	return func(cfg *config.Config, fs *flag.FlagSet, stdout io.Writer) error {
		name := strings.TrimSpace(strings.Join(fs.Args(), " "))
		if name == "" {
			return errors.NewValueError("care", "a plant name is required")
		}
		record, err := catalog.New(cfg.Catalog.Path).GetRecord(name)
		if err != nil {
			return err
		}
		if len(record) == 0 {
			return errors.NewValueError("care", fmt.Sprintf("no plant named %q in the catalog", name))
		}

		svc, err := inference.NewService(cfg.Artifacts.Dir)
		if err != nil {
			return err
		}
		guide, err := svc.QueryCareInstructions(record)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s\n%s\n", record.DisplayName(), guide)
		return nil
	}
}

func recommendCmd(fs *flag.FlagSet) command {
	light := fs.String("light", recommend.LightAny, "available light: Low, Bright or Any")
	experience := fs.String("experience", "", "gardening experience")
	kids := fs.String("kids", recommend.No, "kids or pets at home: Yes or No")
	careTime := fs.String("time", "", "time available for plant care")

	return func(cfg *config.Config, _ *flag.FlagSet, stdout io.Writer) error {
		var r *recommend.Recommender
		if cfg.Recommend.Seed >= 0 {
			r = recommend.NewSeeded(uint64(cfg.Recommend.Seed))
		} else {
			r = recommend.New(nil)
		}
		prefs := recommend.Preferences{
			Light:         *light,
			Experience:    *experience,
			HasKidsOrPets: *kids,
			CareTime:      *careTime,
		}
		record, ok, err := catalog.New(cfg.Catalog.Path).Recommend(r.For(prefs))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(stdout, "No plant matches your preferences.")
			return nil
		}
		fmt.Fprintf(stdout, "We recommend: %s\n", record.DisplayName())
		for _, col := range []string{catalog.ColCategory, catalog.ColIdealLight, catalog.ColWatering, catalog.ColUse} {
			if v, ok := record.String(col); ok && v != "" {
				fmt.Fprintf(stdout, "  %s: %s\n", col, v)
			}
		}
		return nil
	}
}

func listCmd(_ *flag.FlagSet) command {
	return func(cfg *config.Config, _ *flag.FlagSet, stdout io.Writer) error {
		table, err := catalog.New(cfg.Catalog.Path).LoadCatalog()
		if err != nil {
			return err
		}
		ov := table.Overview()
		fmt.Fprintf(stdout, "Total Plants: %d | Categories: %d", ov.Total, ov.Categories)
		if ov.TopCategory.Category != "" {
			fmt.Fprintf(stdout, " | Top Category: %s (%d)", ov.TopCategory.Category, ov.TopCategory.Count)
		}
		fmt.Fprintln(stdout)
		for _, name := range catalog.DisplayNames(table) {
			fmt.Fprintln(stdout, name)
		}
		return nil
	}
}

func chartCmd(_ *flag.FlagSet) command {
	return func(cfg *config.Config, fs *flag.FlagSet, stdout io.Writer) error {
		if fs.NArg() != 1 {
			return errors.NewValueError("chart", "exactly one output path is required")
		}
		table, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			return err
		}
		out := fs.Arg(0)
		if err := chart.Save(out, table.CategoryCounts()); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "chart: %s\n", out)
		return nil
	}
}
