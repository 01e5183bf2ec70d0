// ABOUTME: Plan service for training and nutrition plans.
// ABOUTME: Trainers see every plan; clients see their own.
package domain

import (
	"context"
	"sort"
	"strings"

	"github.com/harperreed/forma/internal/models"
	"github.com/harperreed/forma/internal/storage"
)

// PlanInput describes a new plan.
type PlanInput struct {
	ClientID  string
	TrainerID string
	Type      string
	Title     string
	Details   string
}

func (in PlanInput) validate() error {
	v := models.Violations{}
	if strings.TrimSpace(in.ClientID) == "" {
		v.Add("clientId", "is required")
	}
	if !models.IsValidPlanType(in.Type) {
		v.Add("type", "must be training or nutrition")
	}
	if strings.TrimSpace(in.Title) == "" {
		v.Add("title", "is required")
	}
	return v.Err(models.TablePlans)
}

// Plans manages plans.
type Plans struct {
	store *storage.Store
	dir   *Directory
}

// Add stores a new plan.
func (s *Plans) Add(ctx context.Context, in PlanInput) (*models.Plan, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := s.dir.requireClient(ctx, models.TablePlans, in.ClientID); err != nil {
		return nil, err
	}
	p := &models.Plan{
		ID:        models.NewID(models.PrefixPlan),
		ClientID:  in.ClientID,
		TrainerID: in.TrainerID,
		Type:      models.PlanType(in.Type),
		Title:     strings.TrimSpace(in.Title),
		Details:   in.Details,
		CreatedAt: models.Now(),
	}
	if _, err := s.store.Put(ctx, models.TablePlans, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes a plan. Missing ids are ignored.
func (s *Plans) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, models.TablePlans, id)
}

// ForClient returns a client's plans, oldest first.
func (s *Plans) ForClient(ctx context.Context, clientID string) ([]*models.Plan, error) {
	return s.filter(ctx, func(p *models.Plan) bool { return p.ClientID == clientID })
}

// ForUser returns the plans visible to the session holder.
func (s *Plans) ForUser(ctx context.Context, sess *models.Session) ([]*models.Plan, error) {
	if sess == nil {
		return nil, nil
	}
	return s.filter(ctx, func(p *models.Plan) bool {
		return sess.IsTrainer() || p.ClientID == sess.UserID
	})
}

func (s *Plans) filter(ctx context.Context, keep func(*models.Plan) bool) ([]*models.Plan, error) {
	all, err := storage.All[models.Plan](ctx, s.store, models.TablePlans)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, p := range all {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
