// Package staticdir implements the directory source on a YAML dataset of
// tenant identities, for deployments where the tenant list is managed as
// configuration rather than in the database.
package staticdir

import (
	"context"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/Strob0t/SiteForge/internal/domain/tenant"
	"github.com/Strob0t/SiteForge/internal/validation"
)

// Dataset is the on-disk shape:
//
//	tenants:
//	  - id: 6f1c...
//	    subdomain: acme
//	    custom_domain: acme.com
//	    status: active
type Dataset struct {
	Tenants []tenant.Identity `yaml:"tenants" validate:"unique=ID,dive"`
}

// Source serves the identities of a dataset file. It re-reads the file on
// every call so edits are picked up on the next directory refresh.
type Source struct {
	path      string
	validator *validation.Validator
}

// New returns a Source for the YAML file at path. The file is read once to
// fail fast on a broken dataset.
func New(path string) (*Source, error) {
	s := &Source{path: path, validator: validation.New()}
	if _, err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// ListTenantIdentities returns the dataset's tenants in file order.
func (s *Source) ListTenantIdentities(_ context.Context) ([]tenant.Identity, error) {
	ds, err := s.load()
	if err != nil {
		return nil, err
	}
	return slices.Clone(ds.Tenants), nil
}

func (s *Source) load() (*Dataset, error) {
	data, err := os.ReadFile(s.path) //nolint:gosec // G304: path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("read tenant dataset %s: %w", s.path, err)
	}
	return Parse(data, s.validator)
}

// Parse decodes and validates a dataset.
func Parse(data []byte, v *validation.Validator) (*Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parse tenant dataset: %w", err)
	}
	if err := v.Validate(&ds); err != nil {
		return nil, fmt.Errorf("tenant dataset: %w", err)
	}
	return &ds, nil
}
