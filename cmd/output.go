package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/vendor-match/internal/matching"
	"github.com/sells-group/vendor-match/internal/suggest"
)

// suggestionRow is one ranked vendor flattened for export.
type suggestionRow struct {
	Rank         int
	VendorID     string
	Name         string
	CompanyName  string
	Tier         string
	Performance  float64
	MatchScore   float64
	Confidence   string
	Recommended  bool
	PendingJobs  int
	ResponseHrs  string
	ServiceAreas string
	Warnings     string
}

var suggestionHeader = []string{
	"rank", "vendor_id", "name", "company_name", "tier", "performance", "match_score",
	"confidence", "recommended", "pending_jobs", "avg_response_hours", "service_areas", "warnings",
}

// suggestionRows flattens recommended vendors, followed by the rest of the
// pool when all is set.
func suggestionRows(res *suggest.Suggestions, all bool) []suggestionRow {
	vendors := res.Suggestions
	if all {
		vendors = append(append([]matching.VendorWithMatchScore{}, res.Suggestions...), res.OtherVendors...)
	}

	rows := make([]suggestionRow, 0, len(vendors))
	for i, v := range vendors {
		warnings := make([]string, 0, len(v.MatchScore.Warnings))
		for _, w := range v.MatchScore.Warnings {
			warnings = append(warnings, fmt.Sprintf("[%s] %s", w.Severity, w.Message))
		}
		resp := ""
		if v.AvgResponseTimeHours != nil {
			resp = fmt.Sprintf("%.1f", *v.AvgResponseTimeHours)
		}
		rows = append(rows, suggestionRow{
			Rank:         i + 1,
			VendorID:     v.ID,
			Name:         v.Name,
			CompanyName:  v.CompanyName,
			Tier:         v.TierLabel,
			Performance:  v.Performance.Score,
			MatchScore:   v.MatchScore.TotalScore,
			Confidence:   string(v.MatchScore.Confidence),
			Recommended:  v.MatchScore.Recommended,
			PendingJobs:  v.PendingJobs,
			ResponseHrs:  resp,
			ServiceAreas: strings.Join(v.ServiceAreaLabels, "; "),
			Warnings:     strings.Join(warnings, "; "),
		})
	}
	return rows
}

func outputSuggestions(rows []suggestionRow, format, outputPath string) error {
	if format == "xlsx" {
		return writeSuggestionXLSX(outputPath, rows)
	}

	var w io.Writer
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return eris.Wrapf(err, "suggest: create output file %s", outputPath)
		}
		defer f.Close() //nolint:errcheck
		w = f
	} else {
		w = os.Stdout
	}

	switch format {
	case "csv":
		return writeSuggestionCSV(w, rows)
	case "table":
		return writeSuggestionTable(w, rows)
	default:
		return eris.Errorf("suggest: unsupported format %q", format)
	}
}

func (r suggestionRow) record() []string {
	return []string{
		fmt.Sprintf("%d", r.Rank),
		r.VendorID,
		r.Name,
		r.CompanyName,
		r.Tier,
		fmt.Sprintf("%.2f", r.Performance),
		fmt.Sprintf("%.2f", r.MatchScore),
		r.Confidence,
		fmt.Sprintf("%v", r.Recommended),
		fmt.Sprintf("%d", r.PendingJobs),
		r.ResponseHrs,
		r.ServiceAreas,
		r.Warnings,
	}
}

func writeSuggestionCSV(w io.Writer, rows []suggestionRow) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(suggestionHeader); err != nil {
		return eris.Wrap(err, "suggest: write CSV header")
	}
	for _, r := range rows {
		if err := cw.Write(r.record()); err != nil {
			return eris.Wrap(err, "suggest: write CSV row")
		}
	}
	return nil
}

func writeSuggestionTable(w io.Writer, rows []suggestionRow) error {
	header := fmt.Sprintf("%-4s %-36s %-30s %-12s %7s %7s %-6s %-4s %s\n",
		"#", "Vendor ID", "Name", "Tier", "Perf", "Match", "Conf", "Rec", "Warnings")
	if _, err := fmt.Fprint(w, header); err != nil {
		return eris.Wrap(err, "suggest: write table header")
	}
	if _, err := fmt.Fprintln(w, strings.Repeat("-", 120)); err != nil {
		return eris.Wrap(err, "suggest: write table separator")
	}

	for _, r := range rows {
		name := r.Name
		if len(name) > 30 {
			name = name[:27] + "..."
		}
		rec := "no"
		if r.Recommended {
			rec = "yes"
		}
		line := fmt.Sprintf("%-4d %-36s %-30s %-12s %7.2f %7.2f %-6s %-4s %s\n",
			r.Rank, r.VendorID, name, r.Tier, r.Performance, r.MatchScore, r.Confidence, rec, r.Warnings)
		if _, err := fmt.Fprint(w, line); err != nil {
			return eris.Wrap(err, "suggest: write table row")
		}
	}
	return nil
}

func writeSuggestionXLSX(path string, rows []suggestionRow) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Suggestions")
	if err != nil {
		return eris.Wrap(err, "suggest: add sheet")
	}

	hdr := sheet.AddRow()
	for _, h := range suggestionHeader {
		hdr.AddCell().SetString(h)
	}

	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().SetInt(r.Rank)
		row.AddCell().SetString(r.VendorID)
		row.AddCell().SetString(r.Name)
		row.AddCell().SetString(r.CompanyName)
		row.AddCell().SetString(r.Tier)
		row.AddCell().SetFloat(r.Performance)
		row.AddCell().SetFloat(r.MatchScore)
		row.AddCell().SetString(r.Confidence)
		row.AddCell().SetBool(r.Recommended)
		row.AddCell().SetInt(r.PendingJobs)
		row.AddCell().SetString(r.ResponseHrs)
		row.AddCell().SetString(r.ServiceAreas)
		row.AddCell().SetString(r.Warnings)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "suggest: save %s", path)
	}
	return nil
}
