package traits

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInput() Input {
	return Input{
		Group:               Selection{"Passeriformes"},
		MigratoryStatus:     Selection{"Resident"},
		Diet:                "Omnivore",
		HabitatType:         "Forest",
		WLPASchedule:        "Schedule IV",
		IUCNStatus:          "Least Concern",
		AnalysedLongTerm:    50,
		AnalysedCurrent:     45,
		LongTermTrend:       5.0,
		CurrentAnnualChange: 1.0,
		LongTermStatus:      "Stable",
		CurrentStatus:       "Stable",
		DistributionStatus:  "Widespread",
		EndemicityType:      "Non-endemic",
		BirdType:            "Resident",
	}
}

func TestSchemaOrder(t *testing.T) {
	want := []string{
		"group", "migratory_status", "diet", "habitat_type", "wlpa_schedule",
		"iucn_status", "analysed_long_term", "analysed_current", "long_term_trend",
		"current_annual_change", "long_term_status", "current_status",
		"distribution_status", "endemicity_type", "bird_type",
	}
	assert.Equal(t, want, FieldNames())
	assert.Equal(t, NumFields, len(Schema()))

	var fromRecord []string
	for _, v := range (Record{}).Values() {
		fromRecord = append(fromRecord, v.Name)
	}
	assert.Equal(t, want, fromRecord, "record values must follow schema order")
}

func TestSchemaKindsMatchRecord(t *testing.T) {
	specs := Schema()
	for i, v := range (Record{}).Values() {
		assert.Equal(t, specs[i].Kind, v.Kind, "field %s", v.Name)
	}
}

func TestSchemaIsCopied(t *testing.T) {
	s := Schema()
	s[0].Name = "mutated"
	assert.Equal(t, FieldGroup, Schema()[0].Name)
}

func TestAssemble_Scenario(t *testing.T) {
	rec := Assemble(sampleInput())

	assert.Equal(t, "Passeriformes", rec.Group)
	assert.Equal(t, "Resident", rec.MigratoryStatus)
	assert.Equal(t, "Least Concern", rec.IUCNStatus)
	assert.Equal(t, 50, rec.AnalysedLongTerm)
	assert.Equal(t, 45, rec.AnalysedCurrent)
	assert.Equal(t, 5.0, rec.LongTermTrend)
	assert.Equal(t, 1.0, rec.CurrentAnnualChange)
	assert.Equal(t, "Resident", rec.BirdType)
	assert.Len(t, rec.Map(), NumFields)
}

func TestAssemble_MultiSelect(t *testing.T) {
	tests := []struct {
		name string
		sel  Selection
		want string
	}{
		{"nil selection", nil, ""},
		{"empty selection", Selection{}, ""},
		{"single", Selection{"Passeriformes"}, "Passeriformes"},
		{"several keep pick order", Selection{"Strigiformes", "Accipitriformes"}, "Strigiformes,Accipitriformes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := sampleInput()
			in.Group = tt.sel
			in.MigratoryStatus = tt.sel

			rec := Assemble(in)
			assert.Equal(t, tt.want, rec.Group)
			assert.Equal(t, tt.want, rec.MigratoryStatus)

			m := rec.Map()
			v, ok := m[FieldGroup]
			require.True(t, ok, "group must never be missing")
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestAssemble_NumericDefaults(t *testing.T) {
	rec := Assemble(Input{})
	m := rec.Map()

	assert.Len(t, m, NumFields)
	assert.Equal(t, DefaultNumeric, m[FieldAnalysedLongTerm])
	assert.Equal(t, DefaultNumeric, m[FieldAnalysedCurrent])
	assert.Equal(t, float64(DefaultNumeric), m[FieldLongTermTrend])
	assert.Equal(t, float64(DefaultNumeric), m[FieldCurrentAnnualChange])
	assert.Equal(t, "", m[FieldGroup])
}

func TestValidate_Boundaries(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Input)
		wantErr bool
		field   string
	}{
		{"defaults", func(in *Input) {}, false, ""},
		{"trend min", func(in *Input) { in.LongTermTrend = -100.0 }, false, ""},
		{"trend max", func(in *Input) { in.LongTermTrend = 200.0 }, false, ""},
		{"change min", func(in *Input) { in.CurrentAnnualChange = -50.0 }, false, ""},
		{"change max", func(in *Input) { in.CurrentAnnualChange = 200.0 }, false, ""},
		{"counts max", func(in *Input) { in.AnalysedLongTerm, in.AnalysedCurrent = 1000, 1000 }, false, ""},
		{"trend below", func(in *Input) { in.LongTermTrend = -100.5 }, true, FieldLongTermTrend},
		{"change above", func(in *Input) { in.CurrentAnnualChange = 200.01 }, true, FieldCurrentAnnualChange},
		{"negative count", func(in *Input) { in.AnalysedCurrent = -1 }, true, FieldAnalysedCurrent},
		{"count above", func(in *Input) { in.AnalysedLongTerm = 1001 }, true, FieldAnalysedLongTerm},
		{"nan trend", func(in *Input) { in.LongTermTrend = math.NaN() }, true, FieldLongTermTrend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := sampleInput()
			tt.mutate(&in)
			err := in.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrOutOfRange))
			var rangeErr *RangeError
			require.ErrorAs(t, err, &rangeErr)
			assert.Equal(t, tt.field, rangeErr.Field)
		})
	}
}

func TestSelections(t *testing.T) {
	in := sampleInput()
	in.Group = Selection{"A", "B"}

	assert.Equal(t, []string{"A", "B"}, in.Selections(FieldGroup))
	assert.Equal(t, []string{"Omnivore"}, in.Selections(FieldDiet))
	assert.Nil(t, in.Selections(FieldLongTermTrend))
}

func TestUnknownCategoryError(t *testing.T) {
	err := error(&UnknownCategoryError{Field: FieldIUCNStatus, Value: "Unseen"})
	assert.True(t, errors.Is(err, ErrUnknownCategory))
	assert.Contains(t, err.Error(), "iucn_status")
	assert.Contains(t, err.Error(), "Unseen")
}
