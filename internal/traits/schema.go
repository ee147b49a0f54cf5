// Package traits defines the fixed input schema of the conservation classifier
// and assembles raw trait selections into a single TraitRecord.
//
// Field names, their order and their kinds must match the schema the
// classifier saw in training. The package performs no category validation;
// an unknown category only surfaces when a classifier encodes the record.
package traits

// Kind describes how a field is encoded on the way into the classifier.
type Kind int

const (
	// Categorical fields carry one category token.
	Categorical Kind = iota
	// MultiCategorical fields accept zero or more selections which are
	// flattened into one comma-joined token.
	MultiCategorical
	// Integer fields are whole counts within [Min, Max].
	Integer
	// Float fields are percentages within [Min, Max].
	Float
)

func (k Kind) String() string {
	switch k {
	case Categorical:
		return "categorical"
	case MultiCategorical:
		return "multi_categorical"
	case Integer:
		return "integer"
	case Float:
		return "float"
	default:
		return "unknown"
	}
}

// IsCategorical reports whether values of this kind are category tokens.
func (k Kind) IsCategorical() bool {
	return k == Categorical || k == MultiCategorical
}

// Field names as used by the training pipeline.
const (
	FieldGroup               = "group"
	FieldMigratoryStatus     = "migratory_status"
	FieldDiet                = "diet"
	FieldHabitatType         = "habitat_type"
	FieldWLPASchedule        = "wlpa_schedule"
	FieldIUCNStatus          = "iucn_status"
	FieldAnalysedLongTerm    = "analysed_long_term"
	FieldAnalysedCurrent     = "analysed_current"
	FieldLongTermTrend       = "long_term_trend"
	FieldCurrentAnnualChange = "current_annual_change"
	FieldLongTermStatus      = "long_term_status"
	FieldCurrentStatus       = "current_status"
	FieldDistributionStatus  = "distribution_status"
	FieldEndemicityType      = "endemicity_type"
	FieldBirdType            = "bird_type"
)

// Separator joins multi-select values into one token.
const Separator = ","

// DefaultNumeric is the value of every numeric field the caller leaves unset.
const DefaultNumeric = 0

// FieldSpec describes one schema column. Min and Max are only meaningful for
// numeric kinds.
type FieldSpec struct {
	Name string
	Kind Kind
	Min  float64
	Max  float64
}

var schema = [...]FieldSpec{
	{Name: FieldGroup, Kind: MultiCategorical},
	{Name: FieldMigratoryStatus, Kind: MultiCategorical},
	{Name: FieldDiet, Kind: Categorical},
	{Name: FieldHabitatType, Kind: Categorical},
	{Name: FieldWLPASchedule, Kind: Categorical},
	{Name: FieldIUCNStatus, Kind: Categorical},
	{Name: FieldAnalysedLongTerm, Kind: Integer, Min: 0, Max: 1000},
	{Name: FieldAnalysedCurrent, Kind: Integer, Min: 0, Max: 1000},
	{Name: FieldLongTermTrend, Kind: Float, Min: -100.0, Max: 200.0},
	{Name: FieldCurrentAnnualChange, Kind: Float, Min: -50.0, Max: 200.0},
	{Name: FieldLongTermStatus, Kind: Categorical},
	{Name: FieldCurrentStatus, Kind: Categorical},
	{Name: FieldDistributionStatus, Kind: Categorical},
	{Name: FieldEndemicityType, Kind: Categorical},
	{Name: FieldBirdType, Kind: Categorical},
}

// NumFields is the number of columns in a TraitRecord.
const NumFields = len(schema)

// Schema returns the ordered field specifications.
func Schema() []FieldSpec {
	out := make([]FieldSpec, len(schema))
	copy(out, schema[:])
	return out
}

// FieldNames returns the column names in schema order.
func FieldNames() []string {
	names := make([]string, len(schema))
	for i, f := range schema {
		names[i] = f.Name
	}
	return names
}

// Lookup returns the spec for a field name.
func Lookup(name string) (FieldSpec, bool) {
	for _, f := range schema {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// CategoricalFields returns the names of all categorical and multi-select
// fields in schema order.
func CategoricalFields() []string {
	var names []string
	for _, f := range schema {
		if f.Kind.IsCategorical() {
			names = append(names, f.Name)
		}
	}
	return names
}
