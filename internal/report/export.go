package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// PrometheusExport writes every metric family of g in text exposition format
func PrometheusExport(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// RegistryJSON exports the registry entries in JSON format
func RegistryJSON(g *Registry) (string, error) {
	entries := g.Entries()
	if len(entries) == 0 {
		return "[]", nil
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal registry: %w", err)
	}
	return string(data), nil
}

// WriteTable renders one row per result
func WriteTable(w io.Writer, results []*Result, unit Unit) error {
	table := tablewriter.NewWriter(w)
	table.Header("Thread", "TID", "Strategy", "Elapsed", "Wait", "Outcome")

	for _, r := range results {
		if r == nil {
			continue
		}
		tid := "-"
		if r.Thread.TID > 0 {
			tid = fmt.Sprintf("%d", r.Thread.TID)
		}
		if err := table.Append([]string{
			fmt.Sprintf("%d", r.Thread.Index),
			tid,
			r.Strategy,
			unit.Format(r.Duration),
			r.Wait.String(),
			string(r.Outcome),
		}); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}

	return table.Render()
}
