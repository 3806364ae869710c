package application

import (
	"context"
	"errors"
	"fmt"

	"call-companion-core/internal/domain"
	"call-companion-core/internal/ports"

	"github.com/rs/zerolog"
)

// PropagableFields lists the fields shared by every copy of the same lead.
// Identity and ownership fields never propagate.
var PropagableFields = map[string]struct{}{
	domain.FieldStatus:       {},
	domain.FieldRemark:       {},
	domain.FieldNextCallDate: {},
	domain.FieldNextCallTime: {},
	domain.FieldLastCallDate: {},
}

// FilterPropagable returns the subset of changed that may be propagated to sibling records
func FilterPropagable(changed map[string]string) map[string]string {
	out := make(map[string]string, len(changed))
	for k, v := range changed {
		if _, ok := PropagableFields[k]; ok {
			out[k] = v
		}
	}
	return out
}

// Synchronizer keeps records that share an external lead id converged
type Synchronizer struct {
	store   ports.CustomerRecordStore
	metrics ports.MetricsRecorder
	logger  zerolog.Logger
}

// NewSynchronizer creates a new cross-owner synchronizer
func NewSynchronizer(store ports.CustomerRecordStore, metrics ports.MetricsRecorder, logger zerolog.Logger) *Synchronizer {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &Synchronizer{
		store:   store,
		metrics: metrics,
		logger:  logger.With().Str("component", "synchronizer").Logger(),
	}
}

// Propagate applies the allow-listed subset of changed to every other live record of the
// same business sharing the source record's external lead id. It returns the siblings it updated.
// Every sibling is attempted; failures are joined into the returned error.
func (s *Synchronizer) Propagate(ctx context.Context, recordID string, changed map[string]string) ([]*domain.CustomerRecord, error) {
	fields := FilterPropagable(changed)
	if len(fields) == 0 {
		return nil, nil
	}

	source, err := s.store.FindByID(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to load source record: %w", err)
	}
	if source == nil {
		return nil, fmt.Errorf("source record %s: %w", recordID, domain.ErrNotFound)
	}
	if !source.HasExternalLead() {
		return nil, nil
	}

	// Load every copy of the lead in this business
	siblings, err := s.store.FindByBusinessAndLeadID(ctx, source.BusinessID, source.ExternalLeadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sibling records: %w", err)
	}

	var (
		updated []*domain.CustomerRecord
		errs    []error
	)
	for _, sibling := range siblings {
		if sibling.ID == source.ID || sibling.Deleted {
			continue
		}
		if sibling.BusinessID != source.BusinessID || sibling.ExternalLeadID != source.ExternalLeadID {
			continue
		}

		record, err := s.store.UpdateFields(ctx, sibling.ID, fields)
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("source_id", source.ID).
				Str("sibling_id", sibling.ID).
				Msg("Failed to propagate fields to sibling")
			errs = append(errs, fmt.Errorf("sibling %s: %w", sibling.ID, err))
			continue
		}
		if record != nil {
			updated = append(updated, record)
		}
	}

	s.metrics.SiblingsPropagated(len(updated))
	s.logger.Debug().
		Str("source_id", source.ID).
		Str("business_id", source.BusinessID).
		Str("external_lead_id", source.ExternalLeadID).
		Int("siblings_updated", len(updated)).
		Msg("Propagated shared lead fields")

	return updated, errors.Join(errs...)
}
