package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"toolhub/internal/core/services"
)

func writePreview(w io.Writer, p *services.ImportPreview) error {
	fmt.Fprintf(w, "%s: header at row %d, %d data row(s)\n", p.Kind, p.HeaderRow, p.Rows)

	fields := make([]string, 0, len(p.Mapping))
	for f := range p.Mapping {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tCOLUMN")
	for _, f := range fields {
		fmt.Fprintf(tw, "%s\t%s\n", f, p.Mapping[f])
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, section := range []struct {
		title  string
		issues []services.ImportIssue
	}{
		{"duplicates", p.Duplicates},
		{"invalid", p.Invalid},
		{"warnings", p.Warnings},
	} {
		if err := writeIssues(w, section.title, section.issues); err != nil {
			return err
		}
	}

	if p.Ready {
		fmt.Fprintln(w, "ready to import")
	} else {
		fmt.Fprintln(w, "not ready: fix the rows above")
	}
	return nil
}

func writeIssues(w io.Writer, title string, issues []services.ImportIssue) error {
	if len(issues) == 0 {
		return nil
	}

	fmt.Fprintf(w, "\n%s:\n", title)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tFIELD\tVALUE\tREASON")
	for _, is := range issues {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", is.Row, is.Field, is.Value, is.Reason)
	}
	return tw.Flush()
}

func writeOverdue(w io.Writer, loans []services.OverdueLoan) error {
	if len(loans) == 0 {
		fmt.Fprintln(w, "no overdue loans")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tTOOL\tBORROWER\tQTY\tDUE\tDAYS LATE\tFINE")
	for _, l := range loans {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%d\t%s\n",
			l.Code, l.ToolName, l.BorrowerName, l.Quantity, l.PlannedReturnDate, l.DaysLate, l.FineAccrued.StringFixed(2))
	}
	return tw.Flush()
}
