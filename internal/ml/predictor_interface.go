// Package ml turns a TraitRecord into a conservation-concern label.
// It wraps an opaque trained classifier behind the Classifier interface,
// decodes its class index through a LabelCodec, and bundles both into a
// Service that is built once at start and only read afterwards.
//
// Three classifier backends are available: a native tree ensemble read from
// JSON, the original pickled pipeline evaluated by a Python helper, and a
// remote inference endpoint.
package ml

import (
	"context"

	"bird-conservation/internal/traits"
)

// Classifier maps a record to the class index it was trained to emit.
// Implementations apply their own training-time feature encoding and return
// a *traits.UnknownCategoryError when a categorical value was never seen.
type Classifier interface {
	Predict(ctx context.Context, rec traits.Record) (int, error)
}

// ClassCounter is implemented by classifiers that know how many classes
// they can emit, letting the Service check the codec pairing at load.
type ClassCounter interface {
	NumClasses() int
}

// Versioned is implemented by classifiers that carry their own version tag.
type Versioned interface {
	Version() string
}
