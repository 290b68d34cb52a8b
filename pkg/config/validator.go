package config

import (
	"fmt"
	"net/url"
)

// Validator validates configuration comprehensively with clear error
// messages.
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast - stops at the
// first error).
func (v *Validator) ValidateAll() error {
	if err := v.validateIdentity(); err != nil {
		return fmt.Errorf("identity validation failed: %w", err)
	}
	if err := v.validateServiceEndpoints(); err != nil {
		return fmt.Errorf("service endpoint validation failed: %w", err)
	}
	if err := v.validateDatabase(); err != nil {
		return fmt.Errorf("database validation failed: %w", err)
	}
	if err := v.validateCoordinator(); err != nil {
		return fmt.Errorf("coordinator validation failed: %w", err)
	}
	if err := v.validateRouting(); err != nil {
		return fmt.Errorf("routing validation failed: %w", err)
	}
	return nil
}

func (v *Validator) validateIdentity() error {
	if v.cfg.AssistantKey == "" {
		return NewValidationError("assistant_key", ErrMissingRequiredField)
	}
	if v.cfg.OrgID == "" {
		return NewValidationError("org_id", ErrMissingRequiredField)
	}
	if v.cfg.EntityID == "" {
		return NewValidationError("entity_id", ErrMissingRequiredField)
	}
	return nil
}

func (v *Validator) validateServiceEndpoints() error {
	if v.cfg.Messaging.BaseURL == "" {
		return NewValidationError("messaging.base_url", ErrMissingRequiredField)
	}
	if _, err := url.Parse(v.cfg.Messaging.BaseURL); err != nil {
		return NewValidationError("messaging.base_url", fmt.Errorf("%w: %v", ErrInvalidValue, err))
	}

	if v.cfg.Integrations.BaseURL == "" {
		return NewValidationError("integrations.base_url", ErrMissingRequiredField)
	}
	if _, err := url.Parse(v.cfg.Integrations.BaseURL); err != nil {
		return NewValidationError("integrations.base_url", fmt.Errorf("%w: %v", ErrInvalidValue, err))
	}

	if v.cfg.Identity.BaseURL == "" {
		return NewValidationError("identity.base_url", ErrMissingRequiredField)
	}
	if _, err := url.Parse(v.cfg.Identity.BaseURL); err != nil {
		return NewValidationError("identity.base_url", fmt.Errorf("%w: %v", ErrInvalidValue, err))
	}
	if v.cfg.Identity.ServiceID == "" {
		return NewValidationError("identity.service_id", ErrMissingRequiredField)
	}

	return nil
}

func (v *Validator) validateDatabase() error {
	db := v.cfg.Database
	if db.Host == "" {
		return NewValidationError("database.host", ErrMissingRequiredField)
	}
	if db.Database == "" {
		return NewValidationError("database.database", ErrMissingRequiredField)
	}
	if db.MaxConns < 1 {
		return NewValidationError("database.max_conns", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validateCoordinator() error {
	if v.cfg.Coordinator.MailboxDepth < 0 {
		return NewValidationError("coordinator.mailbox_depth", fmt.Errorf("%w: must be non-negative", ErrInvalidValue))
	}
	if v.cfg.Coordinator.RunTimeout <= 0 {
		return NewValidationError("coordinator.run_timeout", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validateRouting() error {
	r := v.cfg.Routing
	if r.SimilarityThreshold <= 0 || r.SimilarityThreshold > 1 {
		return NewValidationError("routing.similarity_threshold", fmt.Errorf("%w: must be in (0, 1]", ErrInvalidValue))
	}
	if r.CatalogRefresh <= 0 {
		return NewValidationError("routing.catalog_refresh_interval", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	return nil
}
