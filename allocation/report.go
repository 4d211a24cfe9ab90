/*
report.go - The allocation bill produced at finalize

A Report is a snapshot: three normalized percentages and the time it was
generated. It is built only by Engine.Finalize and never changes after.

Body() renders the fixed bill template. The output depends only on the
percentages and GeneratedAt, so two reports built from the same state with
the same clock are byte-identical.

SEE ALSO:
  - export/: Text, CSV and JSON renderings for download
*/
package allocation

import (
	"fmt"
	"strings"
	"time"
)

// ReportTitle is the fixed bill preamble.
const ReportTitle = "HEATX ENERGY ALLOCATION BILL"

const reportIntro = "Distribution of recovered waste-heat power across sectors."

type Report struct {
	Allocation  Weights
	GeneratedAt time.Time
}

func newReport(normalized Weights, at time.Time) Report {
	return Report{Allocation: normalized, GeneratedAt: at.UTC()}
}

// Shares returns the report lines in sector order.
func (r Report) Shares() []Share {
	return r.Allocation.Shares()
}

// Body renders the plain-text bill.
func (r Report) Body() string {
	var b strings.Builder
	b.WriteString(ReportTitle)
	b.WriteString("\n\n")
	b.WriteString(reportIntro)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339))
	for _, s := range r.Shares() {
		fmt.Fprintf(&b, "%-16s %4d%%\n", s.Label, s.Percent)
	}
	fmt.Fprintf(&b, "\n%-16s %4d%%\n", "Total", r.Allocation.Sum())
	return b.String()
}
