package dataset

import (
	"fmt"
	"slices"

	"bird-conservation/internal/traits"
)

// Catalog maps each categorical trait field to the options offered for it,
// in first-appearance order.
type Catalog map[string][]string

// BuildCatalog collects the options of every categorical trait field. The
// table must carry all of them.
func BuildCatalog(t *Table) (Catalog, error) {
	c := make(Catalog)
	for _, field := range traits.CategoricalFields() {
		opts, err := t.Unique(field)
		if err != nil {
			return nil, fmt.Errorf("build catalog: %w", err)
		}
		c[field] = opts
	}
	return c, nil
}

// Options returns the options for field.
func (c Catalog) Options(field string) []string {
	return slices.Clone(c[field])
}

// Check reports the first selected value, in schema order, that the catalog
// does not offer. Multi-select fields are checked option by option and may
// be left empty.
func (c Catalog) Check(in traits.Input) error {
	for _, field := range traits.CategoricalFields() {
		spec, _ := traits.Lookup(field)
		selected := in.Selections(field)
		if spec.Kind == traits.MultiCategorical && len(selected) == 0 {
			continue
		}
		for _, v := range selected {
			if !slices.Contains(c[field], v) {
				return &traits.UnknownCategoryError{
					Field:  field,
					Value:  v,
					Detail: "not among the reference dataset options",
				}
			}
		}
	}
	return nil
}
