// Package service implements the collaborators of the delegation protocol: the
// destination catalog, consent clients, token exchange, forwarding and the pending
// consent state stores.
package service

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	delegationDomain "github.com/allisson/consentbroker/internal/delegation/domain"
	apperrors "github.com/allisson/consentbroker/internal/errors"
)

// destinationsFile is the YAML layout of DESTINATIONS_FILE.
type destinationsFile struct {
	Destinations []delegationDomain.Destination `yaml:"destinations"`
}

// Destinations is an immutable catalog of configured destinations.
type Destinations struct {
	byID map[string]*delegationDomain.Destination
}

// NewDestinations validates destinations and indexes them by id.
func NewDestinations(destinations []delegationDomain.Destination) (*Destinations, error) {
	byID := make(map[string]*delegationDomain.Destination, len(destinations))
	for i := range destinations {
		destination := destinations[i]
		if err := destination.Validate(); err != nil {
			return nil, fmt.Errorf("destinations[%d]: %w", i, err)
		}
		if _, exists := byID[destination.ID]; exists {
			return nil, fmt.Errorf("destinations[%d]: duplicate destination '%s'", i, destination.ID)
		}
		byID[destination.ID] = &destination
	}
	return &Destinations{byID: byID}, nil
}

// LoadDestinations reads the destination catalog from a YAML file. A missing file
// yields an empty catalog.
func LoadDestinations(path string) (*Destinations, error) {
	//nolint:gosec // path comes from operator configuration
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDestinations(nil)
		}
		return nil, fmt.Errorf("failed to read destinations file: %w", err)
	}

	var file destinationsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse destinations file: %w", err)
	}
	return NewDestinations(file.Destinations)
}

// Get returns the destination registered under id.
func (d *Destinations) Get(id string) (*delegationDomain.Destination, error) {
	destination, ok := d.byID[id]
	if !ok {
		return nil, apperrors.Wrap(delegationDomain.ErrDestinationNotFound, fmt.Sprintf("destination '%s'", id))
	}
	return destination, nil
}

// List returns every destination ordered by id.
func (d *Destinations) List() []*delegationDomain.Destination {
	list := make([]*delegationDomain.Destination, 0, len(d.byID))
	for _, destination := range d.byID {
		list = append(list, destination)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}
