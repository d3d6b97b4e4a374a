// Package report renders session exports: spreadsheets, static trial plots
// and interactive HTML charts.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/banshee-data/bimanual.report/internal/kinematics"
)

// Sheet names of the session workbook.
const (
	SheetTrials    = "Trials"
	SheetBimanual  = "Bimanual"
	SheetUnimanual = "Unimanual"
	SheetSummary   = "Summary"
)

// SessionMeta identifies the session an export belongs to.
type SessionMeta struct {
	ID          string
	Participant string
	CreatedAt   time.Time
}

// WriteWorkbook writes an xlsx workbook with one row per trial on the
// Trials sheet, the parameter vectors of computed trials on the Bimanual
// and Unimanual sheets, and the cross-trial statistics on Summary.
func WriteWorkbook(w io.Writer, meta SessionMeta, analyses []kinematics.Analysis, sum kinematics.Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetTrials); err != nil {
		return err
	}
	for _, name := range []string{SheetBimanual, SheetUnimanual, SheetSummary} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	wb := workbook{f: f, header: bold}
	if err := wb.trials(analyses); err != nil {
		return fmt.Errorf("trials sheet: %w", err)
	}
	if err := wb.parameters(SheetBimanual, kinematics.BimanualNames, analyses, func(a kinematics.Analysis) []float64 {
		return a.Bimanual.Values()
	}); err != nil {
		return fmt.Errorf("bimanual sheet: %w", err)
	}
	if err := wb.parameters(SheetUnimanual, kinematics.UnimanualNames, analyses, func(a kinematics.Analysis) []float64 {
		return a.Unimanual.Values()
	}); err != nil {
		return fmt.Errorf("unimanual sheet: %w", err)
	}
	if err := wb.summary(meta, sum); err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}
	return f.Write(w)
}

type workbook struct {
	f      *excelize.File
	header int
}

func (wb workbook) row(sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return wb.f.SetSheetRow(sheet, cell, &values)
}

func (wb workbook) headerRow(sheet string, row int, names []string) error {
	values := make([]any, len(names))
	for i, n := range names {
		values[i] = n
	}
	if err := wb.row(sheet, row, values); err != nil {
		return err
	}
	return wb.f.SetRowStyle(sheet, row, row, wb.header)
}

var trialHeader = []string{
	"trial_id", "role", "score", "e1", "e2", "e3", "e4", "e5", "e6",
	"monotonic", "computed", "detection_error",
}

func (wb workbook) trials(analyses []kinematics.Analysis) error {
	if err := wb.headerRow(SheetTrials, 1, trialHeader); err != nil {
		return err
	}
	for i, a := range analyses {
		ev := a.Events
		values := []any{
			a.TrialID, a.Role.String(), a.Score,
			ev.E1, ev.E2, ev.E3, ev.E4, ev.E5, ev.E6,
			a.Monotonic, a.Computed, a.DetectionError,
		}
		if err := wb.row(SheetTrials, i+2, values); err != nil {
			return err
		}
	}
	return wb.f.SetColWidth(SheetTrials, "A", "A", 38)
}

func (wb workbook) parameters(sheet string, names []string, analyses []kinematics.Analysis, values func(kinematics.Analysis) []float64) error {
	if err := wb.headerRow(sheet, 1, append([]string{"trial_id"}, names...)); err != nil {
		return err
	}
	row := 2
	for _, a := range analyses {
		if !a.Computed {
			continue
		}
		cells := []any{a.TrialID}
		for _, v := range values(a) {
			cells = append(cells, v)
		}
		if err := wb.row(sheet, row, cells); err != nil {
			return err
		}
		row++
	}
	return wb.f.SetColWidth(sheet, "A", "A", 38)
}

func (wb workbook) summary(meta SessionMeta, sum kinematics.Summary) error {
	info := [][]any{
		{"session", meta.ID},
		{"participant", meta.Participant},
		{"created", meta.CreatedAt.Format(time.RFC3339)},
		{"trials", sum.Trials},
		{"computed", sum.Computed},
	}
	for i, r := range info {
		if err := wb.row(SheetSummary, i+1, r); err != nil {
			return err
		}
	}

	row := len(info) + 2
	if err := wb.headerRow(SheetSummary, row, []string{"group", "parameter", "n", "mean", "sd", "median"}); err != nil {
		return err
	}
	row++
	groups := []struct {
		name  string
		stats []kinematics.ParamStats
	}{
		{"bimanual", sum.Bimanual},
		{"unimanual", sum.Unimanual},
	}
	for _, g := range groups {
		for _, ps := range g.stats {
			if err := wb.row(SheetSummary, row, []any{g.name, ps.Name, ps.Count, ps.Mean, ps.SD, ps.Median}); err != nil {
				return err
			}
			row++
		}
	}
	return wb.f.SetColWidth(SheetSummary, "A", "B", 24)
}
