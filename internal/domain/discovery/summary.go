package discovery

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
)

// maxListed caps the per-endpoint detail listing.
const maxListed = 20

// WriteSummary prints a human-readable overview of r.
func WriteSummary(w io.Writer, r Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Total unique fields:\t%d\n", r.Metadata.TotalFields)
	fmt.Fprintf(tw, "Endpoints analyzed:\t%d\n\n", r.Metadata.EndpointsAnalyzed)

	byType := make(map[Type]int)
	for _, f := range r.AllFields {
		byType[f.Type]++
	}
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, string(t))
	}
	sort.Strings(types)
	fmt.Fprintln(tw, "TYPE\tFIELDS")
	for _, t := range types {
		fmt.Fprintf(tw, "%s\t%d\n", t, byType[Type(t)])
	}

	endpoints := append([]string(nil), r.Summary.Endpoints...)
	sort.Strings(endpoints)
	for _, ep := range endpoints {
		ef := r.Endpoints[ep]
		fmt.Fprintf(tw, "\n[%s]\t%d fields\n", ep, ef.FieldCount)
		for i, f := range ef.Fields {
			if i == maxListed {
				fmt.Fprintf(tw, "  ... and %d more\t\n", len(ef.Fields)-maxListed)
				break
			}
			nullable := ""
			if f.Nullable {
				nullable = " (nullable)"
			}
			fmt.Fprintf(tw, "  %s\t%s%s\n", f.Path, f.Type, nullable)
		}
	}
	return tw.Flush()
}
