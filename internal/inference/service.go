// Package inference answers care-instruction queries from a trained bundle.
//
// A Service loads its artifacts once at construction and is read-only
// afterwards, so one instance may serve concurrent callers.
package inference

import (
	"strconv"
	"strings"

	"github.com/vineetsista/Plant-Care-Assistant/internal/artifact"
	"github.com/vineetsista/Plant-Care-Assistant/internal/catalog"
	"github.com/vineetsista/Plant-Care-Assistant/internal/codec"
	"github.com/vineetsista/Plant-Care-Assistant/pkg/errors"
	"github.com/vineetsista/Plant-Care-Assistant/pkg/log"
)

// Service predicts care instructions for plant descriptions.
type Service struct {
	bundle *artifact.Bundle
	logger log.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger overrides the service logger.
func WithLogger(logger log.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService loads the bundle at bundleDir (an artifact root holding LATEST
// or a single run directory).
func NewService(bundleDir string, opts ...Option) (*Service, error) {
	b, err := artifact.Load(bundleDir)
	if err != nil {
		return nil, err
	}
	return NewServiceFromBundle(b, opts...)
}

// NewServiceFromBundle wraps an already loaded or freshly trained bundle.
func NewServiceFromBundle(b *artifact.Bundle, opts ...Option) (*Service, error) {
	if b == nil || b.Pipeline == nil || !b.Pipeline.IsFitted() || b.Vocabularies == nil {
		return nil, errors.NewArtifactLoadError(artifact.ModelFile, "bundle is incomplete", nil)
	}
	s := &Service{bundle: b}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.GetLoggerWithName("inference")
	}
	s.logger = s.logger.With(log.RunIDKey, b.RunID)
	return s, nil
}

// RunID identifies the training run behind the service.
func (s *Service) RunID() string {
	return s.bundle.RunID
}

// Predict returns the decoded target values for info keyed by target column.
func (s *Service) Predict(info map[string]any) (map[string]string, error) {
	codes, err := s.bundle.Pipeline.PredictRow(codec.ProjectRow(info, s.bundle.FeatureColumns))
	if err != nil {
		return nil, errors.Wrap(err, "predict care targets")
	}
	values, err := s.bundle.Vocabularies.DecodeRow(codes)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(values))
	for j, target := range s.bundle.Vocabularies.Targets() {
		out[target] = values[j]
	}
	return out, nil
}

// QueryCareInstructions renders the care guide for a plant record or any
// mapping with the feature columns. Missing or unseen feature values still
// produce a complete guide.
func (s *Service) QueryCareInstructions(info map[string]any) (string, error) {
	predicted, err := s.Predict(info)
	if err != nil {
		s.logger.Error("Care query failed", err, log.OperationKey, log.OperationPredict)
		return "", err
	}

	lines := []string{
		"Light: " + predicted[catalog.ColIdealLight],
		"Watering: " + predicted[catalog.ColWatering],
	}
	if temp, ok := TemperatureRange(catalog.Record(info)); ok {
		lines = append(lines, "Temperature: "+temp)
	}

	s.logger.Debug("Care guide produced",
		log.OperationKey, log.OperationPredict,
		log.PhaseKey, log.PhaseInference,
	)
	return strings.Join(lines, "\n"), nil
}

// TemperatureRange formats the tolerated temperature range of r. The
// Fahrenheit pair wins when both of its bounds are present, then the
// Celsius pair; otherwise ok is false.
func TemperatureRange(r catalog.Record) (string, bool) {
	pairs := []struct {
		min, max, unit string
	}{
		{catalog.ColTempMinFahrenheit, catalog.ColTempMaxFahrenheit, "°F"},
		{catalog.ColTempMinCelsius, catalog.ColTempMaxCelsius, "°C"},
	}
	for _, p := range pairs {
		lo, okLo := r.Float(p.min)
		hi, okHi := r.Float(p.max)
		if okLo && okHi {
			return formatNumber(lo) + p.unit + " to " + formatNumber(hi) + p.unit, true
		}
	}
	return "", false
}

// formatNumber renders f in its shortest form: 15, 15.5.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
