// Package model holds the domain types shared by all trajectory datasources.
package model

import (
	"fmt"

	"github.com/geosense/landtraj/internal/errs"
)

// SpatialPoint is the query location. Immutable, created per request.
type SpatialPoint struct {
	X    float64
	Y    float64
	SRID int
}

// WKT renders the point as well-known text for spatial predicates.
func (p SpatialPoint) WKT() string {
	return fmt.Sprintf("POINT(%v %v)", p.X, p.Y)
}

// ClassificationKind selects how the land-cover class label is obtained.
type ClassificationKind string

const (
	// ClassificationLiteral bakes a fixed label into the query.
	ClassificationLiteral ClassificationKind = "literal"
	// ClassificationAttribute resolves the label by joining against a
	// companion classification entity.
	ClassificationAttribute ClassificationKind = "attribute"
)

// Classification describes how to obtain a class label from a backend.
type Classification struct {
	Kind ClassificationKind
	// ClassProperty is the literal label for the Literal kind, or the
	// label column on the classification entity for the Attribute kind.
	ClassProperty string
	// Entity is the classification entity (table or feature type) joined
	// against for the Attribute kind.
	Entity string
	// EntityIDProperty is the identifier property on Entity that the
	// observation's class reference points at.
	EntityIDProperty string
}

// Validate reports missing fields required by the descriptor's kind.
func (c Classification) Validate() error {
	switch c.Kind {
	case ClassificationLiteral:
	case ClassificationAttribute:
		if c.Entity == "" || c.EntityIDProperty == "" {
			return fmt.Errorf("attribute classification requires entity and entity id property: %w", errs.ErrConfiguration)
		}
	default:
		return fmt.Errorf("unknown classification kind %q: %w", c.Kind, errs.ErrConfiguration)
	}
	return nil
}

// TemporalKind selects how the observation timestamp is represented.
type TemporalKind string

const (
	// TemporalString means the timestamp is a string needing an explicit
	// parse format.
	TemporalString TemporalKind = "string"
	// TemporalTyped means the timestamp is a native date or number column.
	TemporalTyped TemporalKind = "typed"
)

// Temporal describes the backend representation of observation timestamps.
type Temporal struct {
	Kind TemporalKind
	// StringFormat is the Go reference layout used to parse and render
	// string-encoded timestamps. Required for the String kind.
	StringFormat string
}

func (t Temporal) Validate() error {
	switch t.Kind {
	case TemporalString:
		if t.StringFormat == "" {
			return fmt.Errorf("string temporal requires a format: %w", errs.ErrConfiguration)
		}
	case TemporalTyped:
	default:
		return fmt.Errorf("unknown temporal kind %q: %w", t.Kind, errs.ErrConfiguration)
	}
	return nil
}

// ObservationMapping maps abstract attribute names onto backend-specific
// column or attribute names.
type ObservationMapping struct {
	// TemporalProperty is the column/attribute carrying the observation
	// timestamp. Under a string temporal it carries the encoded value
	// itself rather than a column reference.
	TemporalProperty string
	// ClassProperty is the attribute referencing the classification
	// entity's identifier. Only used by attribute classifications.
	ClassProperty string
	// ClassPropertyName is the configured human-readable label emitted by
	// literal classifications.
	ClassPropertyName string
}

// GeometryProperty names the backend geometry column and its SRID.
type GeometryProperty struct {
	Name string
	SRID int
}

// GridShape is the pixel extent requested from a coverage service.
type GridShape struct {
	Columns int
	Rows    int
}

// TrajectoryPoint is the unit of output: one (class, date) observation for
// a fixed spatial point. Absence is signaled by a nil pointer, never by a
// zero value.
type TrajectoryPoint struct {
	Class string `json:"class"`
	Date  string `json:"date"`
}

// TrajectoryQuery carries every per-query parameter a datasource needs to
// resolve one trajectory point. The routing layer validates it before any
// datasource sees it.
type TrajectoryQuery struct {
	// Target is the observation entity: a table, feature type or coverage
	// name depending on the datasource kind.
	Target         string
	Point          SpatialPoint
	Time           string
	Temporal       Temporal
	Classification Classification
	Mapping        ObservationMapping
	Geometry       GeometryProperty
	Grid           GridShape
	StartDate      string
	EndDate        string
}

// Validate checks the descriptor invariants. Start/end ordering is the
// caller's responsibility; an inverted range resolves to no data.
func (q TrajectoryQuery) Validate() error {
	if q.Target == "" {
		return fmt.Errorf("trajectory query requires a target: %w", errs.ErrInvalidParameter)
	}
	if err := q.Classification.Validate(); err != nil {
		return err
	}
	return q.Temporal.Validate()
}
