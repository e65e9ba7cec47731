package service

import (
	"context"
	"errors"
	"strings"

	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/domain"
	"github.com/galvinchau/BlueAngelsCareApi-sub000/internal/repository"
)

// IdentityService maps any worker reference a caller supplies (internal id
// or legacy human code) to the registry entry and the alias set historical
// session rows may have been written under. The identifier scheme changed
// mid-life without backfilling history; this is the single place that
// absorbs the drift. The alias set is recomputed per lookup, never cached.
type IdentityService struct {
	Workers repository.WorkerStore
}

func (s IdentityService) Resolve(ctx context.Context, ref string) (*domain.Worker, domain.WorkerAliasSet, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, domain.WorkerAliasSet{}, domain.Validationf("worker reference is required")
	}
	w, err := s.Workers.FindByIDOrCode(ctx, ref)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.WorkerAliasSet{}, domain.NotFoundf("worker not found")
		}
		return nil, domain.WorkerAliasSet{}, err
	}
	return w, domain.NewWorkerAliasSet(w.ID, w.Code, ref), nil
}
