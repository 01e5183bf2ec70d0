// ABOUTME: Profile service with lazy creation and range validation.
// ABOUTME: Null measurements are allowed; set values must be in range.
package domain

import (
	"context"
	"fmt"
	"net/url"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/harperreed/forma/internal/models"
	"github.com/harperreed/forma/internal/storage"
)

// Profile limits, inclusive.
const (
	MinAge      = 10
	MaxAge      = 100
	MinHeightCm = 100
	MaxHeightCm = 250
	MinWeightKg = 30
	MaxWeightKg = 300
	MaxBioRunes = 500
)

// ValidateProfile checks measurement ranges, bio length and avatar URL.
func ValidateProfile(p *models.Profile) error {
	v := models.Violations{}
	if p.Age != nil && (*p.Age < MinAge || *p.Age > MaxAge) {
		v.Add("age", fmt.Sprintf("must be between %d and %d", MinAge, MaxAge))
	}
	if p.HeightCm != nil && (*p.HeightCm < MinHeightCm || *p.HeightCm > MaxHeightCm) {
		v.Add("heightCm", fmt.Sprintf("must be between %d and %d", MinHeightCm, MaxHeightCm))
	}
	if p.WeightKg != nil && (*p.WeightKg < MinWeightKg || *p.WeightKg > MaxWeightKg) {
		v.Add("weightKg", fmt.Sprintf("must be between %d and %d", MinWeightKg, MaxWeightKg))
	}
	if utf8.RuneCountInString(p.Bio) > MaxBioRunes {
		v.Add("bio", fmt.Sprintf("must be at most %d characters", MaxBioRunes))
	}
	if p.AvatarURL != "" {
		u, err := url.ParseRequestURI(p.AvatarURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			v.Add("avatarUrl", "must be an absolute URL")
		}
	}
	return v.Err(models.TableProfiles)
}

// ProfileUpdate lists the fields to change. Nil fields are left alone.
type ProfileUpdate struct {
	Age       *int
	HeightCm  *float64
	WeightKg  *float64
	Bio       *string
	AvatarURL *string
	Goals     *string
}

// Profiles manages user profiles.
type Profiles struct {
	store  *storage.Store
	logger *zap.Logger
}

func (s *Profiles) find(ctx context.Context, userID string) (*models.Profile, error) {
	all, err := storage.All[models.Profile](ctx, s.store, models.TableProfiles)
	if err != nil {
		return nil, err
	}
	for _, p := range all {
		if p.UserID == userID {
			return p, nil
		}
	}
	return nil, nil
}

// Get returns the user's profile, creating an empty one when missing.
// It fails with ErrNotFound when the user does not exist.
func (s *Profiles) Get(ctx context.Context, userID string) (*models.Profile, error) {
	unlock := s.store.Lock(models.TableProfiles)
	defer unlock()
	return s.getLocked(ctx, userID)
}

func (s *Profiles) getLocked(ctx context.Context, userID string) (*models.Profile, error) {
	p, err := s.find(ctx, userID)
	if err != nil || p != nil {
		return p, err
	}

	u, err := storage.Find[models.User](ctx, s.store, models.TableUsers, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}

	p = models.NewProfile(userID)
	if _, err := s.store.Put(ctx, models.TableProfiles, p); err != nil {
		return nil, err
	}
	s.logger.Debug("created empty profile", zap.String("user_id", userID))
	return p, nil
}

// Update applies upd to the user's profile after validating the result.
func (s *Profiles) Update(ctx context.Context, userID string, upd ProfileUpdate) (*models.Profile, error) {
	unlock := s.store.Lock(models.TableProfiles)
	defer unlock()

	p, err := s.getLocked(ctx, userID)
	if err != nil {
		return nil, err
	}

	next := *p
	if upd.Age != nil {
		next.Age = upd.Age
	}
	if upd.HeightCm != nil {
		next.HeightCm = upd.HeightCm
	}
	if upd.WeightKg != nil {
		next.WeightKg = upd.WeightKg
	}
	if upd.Bio != nil {
		next.Bio = *upd.Bio
	}
	if upd.AvatarURL != nil {
		next.AvatarURL = *upd.AvatarURL
	}
	if upd.Goals != nil {
		next.Goals = *upd.Goals
	}

	if err := ValidateProfile(&next); err != nil {
		return nil, err
	}
	if _, err := s.store.Put(ctx, models.TableProfiles, &next); err != nil {
		return nil, err
	}
	return &next, nil
}
