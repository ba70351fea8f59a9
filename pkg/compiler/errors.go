package compiler

import (
	"fmt"

	"github.com/rs/zerolog"
)

// UnsupportedFeatureError occurs when the IR references an aggregate, window,
// frame, or operator type the compiler does not recognize. Unknown types are
// never silently dropped.
type UnsupportedFeatureError struct {
	error
	feature string
	name    string
}

// NewUnsupportedFeatureErr constructs an error for an unrecognized type
// within the named feature ("aggregate", "window", "frame bound", ...).
func NewUnsupportedFeatureErr(feature, name string) UnsupportedFeatureError {
	return UnsupportedFeatureError{
		error:   fmt.Errorf("unsupported %s type: %q", feature, name),
		feature: feature,
		name:    name,
	}
}

// Feature returns the feature whose type was unrecognized.
func (err UnsupportedFeatureError) Feature() string { return err.feature }

func (err UnsupportedFeatureError) MarshalZerologObject(e *zerolog.Event) {
	e.Str("error", err.Error()).Str("feature", err.feature).Str("type", err.name)
}

// DuplicateNameError occurs when two window functions share an alias or two
// CTEs share a name within one compiled query.
type DuplicateNameError struct {
	error
	kind string
	name string
}

func NewDuplicateNameErr(kind, name string) DuplicateNameError {
	return DuplicateNameError{
		error: fmt.Errorf("duplicate %s name: %q", kind, name),
		kind:  kind,
		name:  name,
	}
}

func (err DuplicateNameError) MarshalZerologObject(e *zerolog.Event) {
	e.Str("error", err.Error()).Str("kind", err.kind).Str("name", err.name)
}
