package app

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"adline/internal/domain"
	"adline/internal/editor"
)

const reloadTimeout = 30 * time.Second

// NewEdit opens an edit session for the ad with the given id, or for a fresh
// draft when id is empty.
func (a *App) NewEdit(id string) *editor.EditWorkflow {
	stored := id != ""
	return editor.NewEdit(editor.Hooks{
		Load: func(ctx context.Context) (domain.Ad, error) {
			if stored {
				return a.Store.GetByID(ctx, id)
			}
			return domain.Ad{
				ID:     uuid.NewString(),
				Author: a.Config.Account.Address,
				Status: domain.StatusDraft,
			}, nil
		},
		Save: func(ctx context.Context, ad domain.Ad) (domain.Ad, error) {
			saved, err := a.save(ctx, ad, stored)
			if err == nil {
				stored = true
			}
			return saved, err
		},
		Close: func(ctx context.Context, ad domain.Ad) (bool, error) {
			if strings.TrimSpace(ad.Title) == "" {
				return false, nil
			}
			ad.Status = domain.StatusDraft
			if _, err := a.save(ctx, ad, stored); err != nil {
				return false, err
			}
			stored = true
			return true, nil
		},
		OnSuccess: a.refresh,
	}, a.Logger.Named("editor"))
}

func (a *App) save(ctx context.Context, ad domain.Ad, stored bool) (domain.Ad, error) {
	if !stored {
		return a.Store.Insert(ctx, ad)
	}
	return a.Store.Update(ctx, ad.ID, editablePatch(ad))
}

// editablePatch carries the fields an edit session may change. Review fields
// are owned by the review workflow.
func editablePatch(ad domain.Ad) domain.AdPatch {
	cover := ad.Cover
	return domain.AdPatch{
		Title:    &ad.Title,
		URL:      &ad.URL,
		Cover:    &cover,
		Author:   &ad.Author,
		Location: &ad.Location,
		Language: &ad.Language,
		Age:      &ad.Age,
		OS:       &ad.OS,
		Stake:    &ad.Stake,
	}
}

// refresh pushes a saved ad into the catalog; ads it does not hold yet need a reload.
func (a *App) refresh(ad domain.Ad) {
	for _, known := range a.Catalog.All() {
		if known.ID == ad.ID {
			a.Catalog.ApplyAd(ad)
			return
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
	defer cancel()
	if err := a.Catalog.Load(ctx); err != nil {
		a.Logger.Debug("catalog reload after save skipped", zap.String("ad_id", ad.ID), zap.Error(err))
	}
}
