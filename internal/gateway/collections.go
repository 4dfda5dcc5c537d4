package gateway

import (
	"context"

	"github.com/construo/construo-server/internal/models"
)

// Typed fetches for the six public collections. Public reads only return
// rows whose status is active, ordered by their display position; access
// control beyond that is delegated to the store.

var activeFilter = []Filter{{Column: "status", Value: "active"}}

func positionAsc() *Order {
	return &Order{Column: "position"}
}

// SiteConfig retrieves the single configuration row by its fixed key.
func (c *Client) SiteConfig(ctx context.Context) (*models.SiteConfig, error) {
	var cfg models.SiteConfig
	if err := c.GetByKey(ctx, models.CollectionSiteConfig, "key", models.SiteConfigKey, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Events lists active events in display order.
func (c *Client) Events(ctx context.Context) ([]models.Event, error) {
	var rows []models.Event
	if err := c.Select(ctx, models.CollectionEvents, activeFilter, positionAsc(), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Timeline lists schedule entries in display order.
func (c *Client) Timeline(ctx context.Context) ([]models.TimelineEntry, error) {
	var rows []models.TimelineEntry
	if err := c.Select(ctx, models.CollectionTimeline, nil, positionAsc(), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Speakers lists active speakers in display order.
func (c *Client) Speakers(ctx context.Context) ([]models.Speaker, error) {
	var rows []models.Speaker
	if err := c.Select(ctx, models.CollectionSpeakers, activeFilter, positionAsc(), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Sponsors lists sponsors in display order.
func (c *Client) Sponsors(ctx context.Context) ([]models.Sponsor, error) {
	var rows []models.Sponsor
	if err := c.Select(ctx, models.CollectionSponsors, nil, positionAsc(), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Organizers lists organizers in display order.
func (c *Client) Organizers(ctx context.Context) ([]models.Organizer, error) {
	var rows []models.Organizer
	if err := c.Select(ctx, models.CollectionOrganizers, nil, positionAsc(), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Registrations lists stored registrations, newest first.
func (c *Client) Registrations(ctx context.Context) ([]models.Registration, error) {
	var rows []models.Registration
	order := &Order{Column: "created_at", Descending: true}
	if err := c.Select(ctx, models.CollectionRegistrations, nil, order, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// CreateRegistration persists a new registration and returns the stored row
// including server-assigned fields.
func (c *Client) CreateRegistration(ctx context.Context, reg *models.Registration) (*models.Registration, error) {
	var stored models.Registration
	if err := c.Insert(ctx, models.CollectionRegistrations, reg, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}
