package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"fuelcell/ml"
	"fuelcell/stack"
)

// WriteText writes the load condition followed by an aligned table of targets.
func (f *Formatter) WriteText(w io.Writer, p *ml.Prediction, ref *stack.Reference) error {
	if _, err := fmt.Fprintf(w, "%s\n\nPredicted Values:\n", f.LoadCondition(p)); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := "Variable\tPredicted Value\tUnit\t"
	if ref != nil {
		header = "Variable\tPredicted Value\tReference\tUnit\t"
	}
	fmt.Fprintln(tw, header)
	for _, row := range f.Rows(p, ref) {
		if ref != nil {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", row.Variable, row.Predicted, row.Reference, row.Unit)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", row.Variable, row.Predicted, row.Unit)
	}
	return tw.Flush()
}
