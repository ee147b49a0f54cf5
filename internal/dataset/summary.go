package dataset

import (
	"fmt"

	"bird-conservation/internal/traits"
)

// Chart kinds used by the panels.
const (
	ChartPie     = "pie"
	ChartBar     = "bar"
	ChartScatter = "scatter"
)

// Panel holds the data of one chart.
type Panel struct {
	Title  string  `json:"title"`
	Chart  string  `json:"chart"`
	Column string  `json:"column,omitempty"`
	Counts []Count `json:"counts,omitempty"`
	Points []Point `json:"points,omitempty"`
	X      string  `json:"x,omitempty"`
	Y      string  `json:"y,omitempty"`
	Color  string  `json:"color,omitempty"`
}

// Summary is the full set of exploratory panels for a (filtered) table.
type Summary struct {
	Rows   int     `json:"rows"`
	Panels []Panel `json:"panels"`
}

type distribution struct {
	title, chart, column string
}

var distributions = []distribution{
	{"IUCN Status Distribution", ChartPie, traits.FieldIUCNStatus},
	{"WLPA Schedule Distribution", ChartBar, traits.FieldWLPASchedule},
	{"Current Status (Stable/Declining/Increasing)", ChartBar, traits.FieldCurrentStatus},
	{"Migratory Status Distribution", ChartPie, traits.FieldMigratoryStatus},
	{"Habitat Type Distribution", ChartBar, traits.FieldHabitatType},
	{"Diet Type Distribution", ChartBar, traits.FieldDiet},
	{"Endemic vs Non-endemic Species", ChartPie, traits.FieldEndemicityType},
}

// Summarize computes the seven distributions and the long-term trend versus
// current annual change scatter.
func Summarize(t *Table) (Summary, error) {
	s := Summary{Rows: t.Len()}
	for _, d := range distributions {
		counts, err := t.ValueCounts(d.column)
		if err != nil {
			return Summary{}, fmt.Errorf("summarize %s: %w", d.column, err)
		}
		s.Panels = append(s.Panels, Panel{Title: d.title, Chart: d.chart, Column: d.column, Counts: counts})
	}

	points, err := t.Points(traits.FieldLongTermTrend, traits.FieldCurrentAnnualChange, traits.FieldLongTermStatus)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize trends: %w", err)
	}
	s.Panels = append(s.Panels, Panel{
		Title:  "Long-term Trend vs Current Annual Change",
		Chart:  ChartScatter,
		Points: points,
		X:      traits.FieldLongTermTrend,
		Y:      traits.FieldCurrentAnnualChange,
		Color:  traits.FieldLongTermStatus,
	})
	return s, nil
}
