// Package wfs resolves trajectory points against a web feature service.
package wfs

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/geosense/landtraj/internal/errs"
	"github.com/geosense/landtraj/internal/model"
	"github.com/geosense/landtraj/internal/ogc"
	"github.com/geosense/landtraj/internal/temporal"
)

// FeatureClient is the slice of the WFS client the backend consumes.
// Satisfied by *ogc.WFSClient; tests substitute fakes.
type FeatureClient interface {
	FeatureTypeExists(ctx context.Context, name string) (bool, error)
	GetFeatures(ctx context.Context, p ogc.FilterParams) ([]ogc.Feature, error)
	AttributeByFeatureID(ctx context.Context, featureType, featureID, attribute string) (string, error)
}

// Backend is one feature-service datasource.
type Backend struct {
	id        string
	logger    *slog.Logger
	client    FeatureClient
	workspace string
}

func New(id string, logger *slog.Logger, client FeatureClient, workspace string) *Backend {
	return &Backend{id: id, logger: logger, client: client, workspace: workspace}
}

func (b *Backend) ID() string { return b.id }

func (b *Backend) qualified(name string) string {
	if b.workspace == "" {
		return name
	}
	return b.workspace + ":" + name
}

// boundFormat is the layout server-side date predicates are rendered with.
func boundFormat(t model.Temporal) string {
	if t.StringFormat != "" {
		return t.StringFormat
	}
	return "2006-01-02"
}

// Trajectory resolves one point. The four (classification, temporal)
// combinations differ in what gets projected, where the date filter runs
// and how many service calls are made: one for literal classifications,
// two for attribute classifications.
func (b *Backend) Trajectory(ctx context.Context, q model.TrajectoryQuery) (*model.TrajectoryPoint, error) {
	bounds, err := temporal.ParseBounds(q.StartDate, q.EndDate)
	if err != nil {
		return nil, err
	}

	attribute := q.Classification.Kind == model.ClassificationAttribute
	stringTemporal := q.Temporal.Kind == model.TemporalString

	// Under a string temporal the observation date lives in the mapping:
	// parse it up front and re-render it under the configured format, and
	// let an excluding bound resolve before any round-trip.
	var obsDate string
	if stringTemporal {
		obs, err := temporal.Parse(q.Mapping.TemporalProperty)
		if err != nil {
			return nil, fmt.Errorf("temporal value: %w", err)
		}
		if attribute && !bounds.Contains(obs) {
			return nil, nil
		}
		obsDate = obs.Format(q.Temporal.StringFormat)
	}

	featureType := b.qualified(q.Target)
	exists, err := b.client.FeatureTypeExists(ctx, featureType)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("feature type %q: %w", featureType, errs.ErrNotFound)
	}

	params := ogc.FilterParams{
		FeatureType:      featureType,
		SRID:             q.Point.SRID,
		GeometryProperty: q.Geometry.Name,
		Point:            q.Point,
	}
	if attribute {
		params.Properties = append(params.Properties, q.Mapping.ClassProperty)
	}
	if !stringTemporal {
		params.Properties = append(params.Properties, q.Mapping.TemporalProperty)
		params.TemporalProperty = q.Mapping.TemporalProperty
		layout := boundFormat(q.Temporal)
		if bounds.Start != nil {
			params.Start = bounds.Start.Format(layout)
		}
		if bounds.End != nil {
			params.End = bounds.End.Format(layout)
		}
	}

	features, err := b.client.GetFeatures(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(features) == 0 {
		return nil, nil
	}
	first := features[0]

	// First match only; multiple candidates at one instant are not
	// aggregated.
	date := obsDate
	if !stringTemporal {
		date = propString(first.Properties[q.Mapping.TemporalProperty])
	}

	if !attribute {
		label := q.Mapping.ClassPropertyName
		if label == "" {
			label = q.Classification.ClassProperty
		}
		return &model.TrajectoryPoint{Class: label, Date: date}, nil
	}

	classRef := propString(first.Properties[q.Mapping.ClassProperty])
	featureID := fmt.Sprintf("%s.%s", q.Classification.Entity, classRef)
	class, err := b.client.AttributeByFeatureID(ctx,
		b.qualified(q.Classification.Entity), featureID, q.Classification.ClassProperty)
	if err != nil {
		return nil, err
	}
	b.logger.LogAttrs(ctx, slog.LevelDebug, "class reference resolved",
		slog.String("datasource", b.id),
		slog.String("feature_id", featureID),
		slog.String("class", class),
	)
	return &model.TrajectoryPoint{Class: class, Date: date}, nil
}

// propString renders a GeoJSON property value. JSON numbers arrive as
// float64 and must not pick up an exponent or trailing zeros.
func propString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
