package traits

// Record is one row of classifier input. Every field is always present;
// multi-select fields hold their comma-joined token.
type Record struct {
	Group               string  `json:"group" yaml:"group"`
	MigratoryStatus     string  `json:"migratory_status" yaml:"migratory_status"`
	Diet                string  `json:"diet" yaml:"diet"`
	HabitatType         string  `json:"habitat_type" yaml:"habitat_type"`
	WLPASchedule        string  `json:"wlpa_schedule" yaml:"wlpa_schedule"`
	IUCNStatus          string  `json:"iucn_status" yaml:"iucn_status"`
	AnalysedLongTerm    int     `json:"analysed_long_term" yaml:"analysed_long_term"`
	AnalysedCurrent     int     `json:"analysed_current" yaml:"analysed_current"`
	LongTermTrend       float64 `json:"long_term_trend" yaml:"long_term_trend"`
	CurrentAnnualChange float64 `json:"current_annual_change" yaml:"current_annual_change"`
	LongTermStatus      string  `json:"long_term_status" yaml:"long_term_status"`
	CurrentStatus       string  `json:"current_status" yaml:"current_status"`
	DistributionStatus  string  `json:"distribution_status" yaml:"distribution_status"`
	EndemicityType      string  `json:"endemicity_type" yaml:"endemicity_type"`
	BirdType            string  `json:"bird_type" yaml:"bird_type"`
}

// Value is a single named cell of a Record.
type Value struct {
	Name   string
	Kind   Kind
	Text   string
	Number float64
}

// Interface returns the cell as string, int or float64 depending on kind.
func (v Value) Interface() any {
	switch v.Kind {
	case Integer:
		return int(v.Number)
	case Float:
		return v.Number
	default:
		return v.Text
	}
}

// Values returns the cells in schema order.
func (r Record) Values() []Value {
	return []Value{
		{Name: FieldGroup, Kind: MultiCategorical, Text: r.Group},
		{Name: FieldMigratoryStatus, Kind: MultiCategorical, Text: r.MigratoryStatus},
		{Name: FieldDiet, Kind: Categorical, Text: r.Diet},
		{Name: FieldHabitatType, Kind: Categorical, Text: r.HabitatType},
		{Name: FieldWLPASchedule, Kind: Categorical, Text: r.WLPASchedule},
		{Name: FieldIUCNStatus, Kind: Categorical, Text: r.IUCNStatus},
		{Name: FieldAnalysedLongTerm, Kind: Integer, Number: float64(r.AnalysedLongTerm)},
		{Name: FieldAnalysedCurrent, Kind: Integer, Number: float64(r.AnalysedCurrent)},
		{Name: FieldLongTermTrend, Kind: Float, Number: r.LongTermTrend},
		{Name: FieldCurrentAnnualChange, Kind: Float, Number: r.CurrentAnnualChange},
		{Name: FieldLongTermStatus, Kind: Categorical, Text: r.LongTermStatus},
		{Name: FieldCurrentStatus, Kind: Categorical, Text: r.CurrentStatus},
		{Name: FieldDistributionStatus, Kind: Categorical, Text: r.DistributionStatus},
		{Name: FieldEndemicityType, Kind: Categorical, Text: r.EndemicityType},
		{Name: FieldBirdType, Kind: Categorical, Text: r.BirdType},
	}
}

// Map returns the record keyed by field name, the shape external
// classifiers consume.
func (r Record) Map() map[string]any {
	vals := r.Values()
	m := make(map[string]any, len(vals))
	for _, v := range vals {
		m[v.Name] = v.Interface()
	}
	return m
}
