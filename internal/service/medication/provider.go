// Package medication provides read access to medications for the dose
// engine. Reads are cached: the reminder sweeps run every minute and the
// medication set changes rarely.
package medication

import (
	"context"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/pawdose/medtrack-api/internal/model"
	"github.com/pawdose/medtrack-api/internal/repository"
)

const activeListKey = "medications:active"

type Provider struct {
	repo  repository.MedicationRepository
	cache *gocache.Cache
}

var _ repository.MedicationRepository = (*Provider)(nil)

func NewProvider(repo repository.MedicationRepository, ttl time.Duration) *Provider {
	return &Provider{
		repo:  repo,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (p *Provider) Get(ctx context.Context, id uuid.UUID) (*model.Medication, error) {
	if cached, ok := p.cache.Get(id.String()); ok {
		return cached.(*model.Medication), nil
	}
	med, err := p.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.cache.SetDefault(id.String(), med)
	return med, nil
}

func (p *Provider) ListActive(ctx context.Context) ([]*model.Medication, error) {
	if cached, ok := p.cache.Get(activeListKey); ok {
		return cached.([]*model.Medication), nil
	}
	medications, err := p.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	p.cache.SetDefault(activeListKey, medications)
	return medications, nil
}

// Invalidate drops cached entries after an external schedule or status
// change, so the next sweep sees the update.
func (p *Provider) Invalidate(id uuid.UUID) {
	p.cache.Delete(id.String())
	p.cache.Delete(activeListKey)
}
