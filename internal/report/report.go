// Package report exports a training run's evaluation as an XLSX workbook:
// a summary sheet, one classification report sheet per target and a
// feature importance sheet.
package report

import (
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/vineetsista/Plant-Care-Assistant/internal/training"
	"github.com/vineetsista/Plant-Care-Assistant/metrics"
	"github.com/vineetsista/Plant-Care-Assistant/pkg/errors"
	"github.com/vineetsista/Plant-Care-Assistant/pkg/log"
)

// Sheet names.
const (
	SummarySheet     = "Summary"
	ImportanceSheet  = "Importances"
	targetPrefix     = "Eval "
	defaultSheetName = "Sheet1"
	maxSheetName     = 31
)

// TargetSheet is the sheet holding the report of target.
func TargetSheet(target string) string {
	name := targetPrefix + target
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	return name
}

// Build assembles the workbook for result. The caller closes it.
func Build(result *training.Result) (*excelize.File, error) {
	if result == nil {
		return nil, errors.NewValueError("report.Build", "result is nil")
	}
	f := excelize.NewFile()
	if err := f.SetSheetName(defaultSheetName, SummarySheet); err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "rename summary sheet")
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "create header style")
	}

	if err := writeSummary(f, bold, result); err != nil {
		_ = f.Close()
		return nil, err
	}
	for _, ev := range result.Evaluation {
		if err := writeTarget(f, bold, ev.Target, ev.Report); err != nil {
			_ = f.Close()
			return nil, errors.Wrapf(err, "sheet for %s", ev.Target)
		}
	}
	if err := writeImportances(f, bold, result.Evaluation); err != nil {
		_ = f.Close()
		return nil, err
	}

	if idx, err := f.GetSheetIndex(SummarySheet); err == nil {
		f.SetActiveSheet(idx)
	}
	return f, nil
}

// WriteXLSX saves the workbook for result to path.
func WriteXLSX(path string, result *training.Result) error {
	f, err := Build(result)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return errors.Wrapf(err, "save %s", path)
	}
	log.GetLoggerWithName("report").Info("Evaluation report written",
		log.PathKey, path,
		log.RunIDKey, result.RunID,
	)
	return nil
}

// Write streams the workbook for result to w.
func Write(w io.Writer, result *training.Result) error {
	f, err := Build(result)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return errors.Wrap(err, "write xlsx")
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, header []any, rows [][]any, headerStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func writeSummary(f *excelize.File, style int, r *training.Result) error {
	rows := [][]any{
		{"run_id", r.RunID},
		{"samples", r.Samples},
		{"dropped", r.Dropped},
		{"train_size", r.TrainSize},
		{"test_size", r.TestSize},
		{"duration_ms", r.Duration.Milliseconds()},
	}
	for _, ev := range r.Evaluation {
		if ev.Report != nil {
			rows = append(rows, []any{"accuracy." + ev.Target, ev.Report.Accuracy})
		}
	}
	if r.CV != nil {
		rows = append(rows,
			[]any{"cv.folds", r.CV.Folds},
			[]any{"cv.mean", r.CV.Mean},
			[]any{"cv.std", r.CV.Std},
		)
	}
	if err := writeRows(f, SummarySheet, []any{"metric", "value"}, rows, style); err != nil {
		return errors.Wrap(err, "summary sheet")
	}
	_ = f.SetColWidth(SummarySheet, "A", "A", 22)
	_ = f.SetColWidth(SummarySheet, "B", "B", 40)
	return nil
}

func writeTarget(f *excelize.File, style int, target string, rep *metrics.Report) error {
	if rep == nil {
		return nil
	}
	sheet := TargetSheet(target)
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	rows := make([][]any, 0, len(rep.Classes)+3)
	for _, c := range append(append([]metrics.ClassReport(nil), rep.Classes...), rep.MacroAvg, rep.WeightedAvg) {
		rows = append(rows, []any{c.Label, c.Precision, c.Recall, c.F1, c.Support})
	}
	rows = append(rows, []any{"accuracy", "", "", rep.Accuracy, rep.Support})
	if err := writeRows(f, sheet, []any{"class", "precision", "recall", "f1-score", "support"}, rows, style); err != nil {
		return err
	}
	_ = f.SetColWidth(sheet, "A", "A", 28)
	_ = f.SetColWidth(sheet, "B", "E", 12)
	return nil
}

func writeImportances(f *excelize.File, style int, evaluation []training.TargetEvaluation) error {
	if _, err := f.NewSheet(ImportanceSheet); err != nil {
		return errors.Wrap(err, "importance sheet")
	}
	var rows [][]any
	for _, ev := range evaluation {
		for _, fi := range ev.Importances {
			rows = append(rows, []any{ev.Target, fi.Feature, fi.Importance})
		}
	}
	if err := writeRows(f, ImportanceSheet, []any{"target", "feature", "importance"}, rows, style); err != nil {
		return errors.Wrap(err, "importance sheet")
	}
	_ = f.SetColWidth(ImportanceSheet, "A", "A", 14)
	_ = f.SetColWidth(ImportanceSheet, "B", "B", 36)
	return nil
}
