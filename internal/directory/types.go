// Package directory manages the catalogue of social-service organizations
// that Opora presents and grounds its assistant on.
//
// Organizations are loaded from a YAML directory file (or Postgres) at
// startup, filtered through pure functions for the HTTP surface, and
// flattened into an instruction string for the conversational assistant.
//
// All store operations are safe for concurrent use.
package directory

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Organization is one record in the directory.
type Organization struct {
	// ID is a unique identifier. Auto-generated if empty during import.
	ID string `yaml:"id" json:"id"`

	// Name is the organization's display name.
	Name string `yaml:"name" json:"name"`

	// Address is the street address shown to users.
	Address string `yaml:"address" json:"address"`

	// Category classifies the kind of support offered.
	Category Category `yaml:"category" json:"category"`

	// Services is a free-text description of the services offered.
	Services string `yaml:"services" json:"services"`

	// Phone is the contact phone number.
	Phone string `yaml:"phone" json:"phone"`

	// Budget indicates state-budget funding (as opposed to charity or
	// volunteer funding).
	Budget bool `yaml:"budget" json:"budget"`

	// Status indicates whether the organization currently accepts requests.
	Status Status `yaml:"status" json:"status"`

	// Region is the oblast or city the organization operates in.
	Region string `yaml:"region" json:"region"`
}

// Category classifies the kind of support an organization offers.
type Category string

const (
	// CategorySocial covers general social support services.
	CategorySocial Category = "social"

	// CategoryMedical covers medical and rehabilitation services.
	CategoryMedical Category = "medical"

	// CategoryLegal covers legal aid and documentation help.
	CategoryLegal Category = "legal"

	// CategoryPsychological covers mental-health support.
	CategoryPsychological Category = "psychological"

	// CategoryHumanitarian covers humanitarian aid distribution.
	CategoryHumanitarian Category = "humanitarian"
)

// IsValid reports whether c is a recognised category.
func (c Category) IsValid() bool {
	switch c {
	case CategorySocial, CategoryMedical, CategoryLegal, CategoryPsychological, CategoryHumanitarian:
		return true
	}
	return false
}

// Status indicates whether an organization currently accepts requests.
type Status string

const (
	// StatusActive means the organization accepts new requests.
	StatusActive Status = "active"

	// StatusLimited means the organization accepts requests with restrictions
	// (waiting list, reduced hours).
	StatusLimited Status = "limited"

	// StatusInactive means the organization is temporarily not operating.
	StatusInactive Status = "inactive"
)

// IsValid reports whether s is a recognised status.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusLimited, StatusInactive:
		return true
	}
	return false
}

// ErrInvalid wraps all validation failures reported by [Organization.Validate].
var ErrInvalid = errors.New("invalid organization")

// Validate checks the organization for structural problems. All problems are
// reported at once; the returned error matches [ErrInvalid] via errors.Is.
func (o Organization) Validate() error {
	var errs []error
	if strings.TrimSpace(o.Name) == "" {
		errs = append(errs, errors.New("directory: organization name must not be empty"))
	}
	if !o.Category.IsValid() {
		errs = append(errs, fmt.Errorf("directory: unknown category %q", o.Category))
	}
	if !o.Status.IsValid() {
		errs = append(errs, fmt.Errorf("directory: unknown status %q", o.Status))
	}
	if strings.TrimSpace(o.Region) == "" {
		errs = append(errs, errors.New("directory: organization region must not be empty"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// Regions returns the sorted set of distinct regions present in orgs.
func Regions(orgs []Organization) []string {
	seen := make(map[string]struct{}, len(orgs))
	var regions []string
	for _, o := range orgs {
		if _, dup := seen[o.Region]; dup || o.Region == "" {
			continue
		}
		seen[o.Region] = struct{}{}
		regions = append(regions, o.Region)
	}
	slices.Sort(regions)
	return regions
}
