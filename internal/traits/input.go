package traits

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"gopkg.in/yaml.v3"
)

// Selection holds the chosen options of a multi-select field, in the order
// they were picked.
type Selection []string

// String returns the flattened token.
func (s Selection) String() string {
	return strings.Join(s, Separator)
}

// UnmarshalJSON accepts either a list of options or an already joined string.
func (s *Selection) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = list
		return nil
	}
	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return fmt.Errorf("selection must be a string or a list of strings: %w", err)
	}
	*s = splitSelection(joined)
	return nil
}

// UnmarshalYAML accepts either a sequence or a scalar.
func (s *Selection) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*s = list
	case yaml.ScalarNode:
		*s = splitSelection(node.Value)
	default:
		return fmt.Errorf("line %d: selection must be a string or a list of strings", node.Line)
	}
	return nil
}

func splitSelection(joined string) Selection {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, Separator)
}

// Input is one value per trait as collected from a form, payload or batch
// file. Numeric fields left unset keep DefaultNumeric.
type Input struct {
	Group               Selection `json:"group" yaml:"group"`
	MigratoryStatus     Selection `json:"migratory_status" yaml:"migratory_status"`
	Diet                string    `json:"diet" yaml:"diet"`
	HabitatType         string    `json:"habitat_type" yaml:"habitat_type"`
	WLPASchedule        string    `json:"wlpa_schedule" yaml:"wlpa_schedule"`
	IUCNStatus          string    `json:"iucn_status" yaml:"iucn_status"`
	AnalysedLongTerm    int       `json:"analysed_long_term" yaml:"analysed_long_term"`
	AnalysedCurrent     int       `json:"analysed_current" yaml:"analysed_current"`
	LongTermTrend       float64   `json:"long_term_trend" yaml:"long_term_trend"`
	CurrentAnnualChange float64   `json:"current_annual_change" yaml:"current_annual_change"`
	LongTermStatus      string    `json:"long_term_status" yaml:"long_term_status"`
	CurrentStatus       string    `json:"current_status" yaml:"current_status"`
	DistributionStatus  string    `json:"distribution_status" yaml:"distribution_status"`
	EndemicityType      string    `json:"endemicity_type" yaml:"endemicity_type"`
	BirdType            string    `json:"bird_type" yaml:"bird_type"`
}

// Validate enforces the numeric ranges a form would impose.
func (in Input) Validate() error {
	checks := []struct {
		name  string
		value float64
	}{
		{FieldAnalysedLongTerm, float64(in.AnalysedLongTerm)},
		{FieldAnalysedCurrent, float64(in.AnalysedCurrent)},
		{FieldLongTermTrend, in.LongTermTrend},
		{FieldCurrentAnnualChange, in.CurrentAnnualChange},
	}
	for _, c := range checks {
		spec, _ := Lookup(c.name)
		if math.IsNaN(c.value) || c.value < spec.Min || c.value > spec.Max {
			return &RangeError{Field: c.name, Value: c.value, Min: spec.Min, Max: spec.Max}
		}
	}
	return nil
}

// Selections returns the individual options of a multi-select field, or the
// single value of a categorical field.
func (in Input) Selections(field string) []string {
	switch field {
	case FieldGroup:
		return in.Group
	case FieldMigratoryStatus:
		return in.MigratoryStatus
	}
	v, ok := Assemble(in).text(field)
	if !ok {
		return nil
	}
	return []string{v}
}

// Assemble flattens an Input into a Record. It is a pure transformation:
// every field is carried over and multi-selects are comma-joined, an empty
// selection giving an empty string.
func Assemble(in Input) Record {
	return Record{
		Group:               in.Group.String(),
		MigratoryStatus:     in.MigratoryStatus.String(),
		Diet:                in.Diet,
		HabitatType:         in.HabitatType,
		WLPASchedule:        in.WLPASchedule,
		IUCNStatus:          in.IUCNStatus,
		AnalysedLongTerm:    in.AnalysedLongTerm,
		AnalysedCurrent:     in.AnalysedCurrent,
		LongTermTrend:       in.LongTermTrend,
		CurrentAnnualChange: in.CurrentAnnualChange,
		LongTermStatus:      in.LongTermStatus,
		CurrentStatus:       in.CurrentStatus,
		DistributionStatus:  in.DistributionStatus,
		EndemicityType:      in.EndemicityType,
		BirdType:            in.BirdType,
	}
}

func (r Record) text(field string) (string, bool) {
	for _, v := range r.Values() {
		if v.Name == field && v.Kind.IsCategorical() {
			return v.Text, true
		}
	}
	return "", false
}
