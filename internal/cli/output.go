package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"shiftsync/internal/model"
	"shiftsync/internal/pipeline"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

func parseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case FormatText, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("invalid format: %s (must be 'text' or 'json')", s)
	}
}

// WriteReport writes a sync report in the given format.
func WriteReport(w io.Writer, rep pipeline.Report, format OutputFormat) error {
	if format == FormatJSON {
		return writeJSON(w, rep)
	}

	if rep.Err != "" {
		fmt.Fprintf(w, "No shifts found: %s\n", rep.Err)
		return nil
	}
	if len(rep.Results) == 0 {
		fmt.Fprintln(w, "No shifts found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tEVENT\tTIME\tSTATUS")
	for _, r := range rep.Results {
		status := string(r.Status)
		if r.Message != "" && r.Status == model.StatusError {
			status += ": " + r.Message
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Shift.Start.Format("Mon Jan 2"), r.Shift.Summary, timeRange(r.Shift), status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nTotal: %d shifts (%d created, %d duplicate, %d errors)\n",
		len(rep.Results), rep.Created, rep.Duplicates, rep.Errors)
	return nil
}

// WriteShifts writes parsed shifts without sync results.
func WriteShifts(w io.Writer, shifts []model.ShiftRecord, format OutputFormat) error {
	if format == FormatJSON {
		if shifts == nil {
			shifts = []model.ShiftRecord{}
		}
		return writeJSON(w, shifts)
	}
	if len(shifts) == 0 {
		fmt.Fprintln(w, "No shifts found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tEVENT\tTIME\tLOCATION")
	for _, s := range shifts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Start.Format("Mon Jan 2"), s.Summary, timeRange(s), s.Location)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nTotal: %d shifts\n", len(shifts))
	return nil
}

func timeRange(s model.ShiftRecord) string {
	if s.DisplayTimeRange != "" {
		return s.DisplayTimeRange
	}
	return s.Start.Format("3:04 pm") + " - " + s.End.Format("3:04 pm")
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
