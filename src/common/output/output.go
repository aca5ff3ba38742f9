// Package output renders command results for humans (tables, colored
// status lines) and machines (JSON).
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/gookit/color"
)

// Format selects how results are rendered
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// ParseFormat validates a --output flag value
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatTable, "":
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (expected table or json)", s)
	}
}

// PrintJSON writes data as indented JSON to w
func PrintJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// PrintTable writes tabular data to w
func PrintTable(w io.Writer, headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	for i, h := range headers {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, h)
	}
	fmt.Fprintln(tw)

	for _, row := range rows {
		for i, col := range row {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, col)
		}
		fmt.Fprintln(tw)
	}

	tw.Flush()
}

// PrintHeading writes a bold section title
func PrintHeading(w io.Writer, title string) {
	fmt.Fprintln(w, color.Bold.Sprint(title))
}

// PrintKeyValues writes aligned "key: value" lines
func PrintKeyValues(w io.Writer, pairs [][2]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	for _, kv := range pairs {
		fmt.Fprintf(tw, "  %s:\t%s\n", kv[0], kv[1])
	}
	tw.Flush()
}

// PrintSuccess writes a green status line
func PrintSuccess(w io.Writer, msg string) {
	fmt.Fprintln(w, color.Success.Sprint(msg))
}

// PrintWarning writes a yellow status line
func PrintWarning(w io.Writer, msg string) {
	fmt.Fprintln(w, color.Warn.Sprint(msg))
}

// PrintError writes an error message to stderr
func PrintError(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", color.Error.Sprint("Error:"), err)
}
