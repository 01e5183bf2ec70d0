// ABOUTME: Messaging service for trainer and client conversations.
// ABOUTME: Conversations are sorted by send time.
package domain

import (
	"context"
	"sort"
	"strings"

	"github.com/harperreed/forma/internal/models"
	"github.com/harperreed/forma/internal/storage"
)

// Messages manages chat messages.
type Messages struct {
	store *storage.Store
	dir   *Directory
}

// Send stores a message from one user to another.
func (s *Messages) Send(ctx context.Context, fromID, toID, text string) (*models.Message, error) {
	v := models.Violations{}
	if fromID == "" {
		v.Add("fromId", "is required")
	}
	if toID == "" {
		v.Add("toId", "is required")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		v.Add("text", "is required")
	}
	if err := v.Err(models.TableMessages); err != nil {
		return nil, err
	}

	m := &models.Message{
		ID:     models.NewID(models.PrefixMessage),
		FromID: fromID,
		ToID:   toID,
		Text:   text,
		SentAt: models.Now(),
	}
	if _, err := s.store.Put(ctx, models.TableMessages, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Conversation returns messages exchanged between a and b, oldest first.
func (s *Messages) Conversation(ctx context.Context, a, b string) ([]*models.Message, error) {
	all, err := storage.All[models.Message](ctx, s.store, models.TableMessages)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, m := range all {
		if m.Between(a, b) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SentAt.Before(out[j].SentAt) })
	return out, nil
}

// Peers returns the users the session holder can message: clients for a
// trainer, trainers for a client.
func (s *Messages) Peers(ctx context.Context, sess *models.Session) ([]*models.User, error) {
	if sess == nil {
		return nil, nil
	}
	want := models.RoleTrainer
	if sess.IsTrainer() {
		want = models.RoleClient
	}
	users, err := s.dir.WithRole(ctx, want)
	if err != nil {
		return nil, err
	}
	out := users[:0]
	for _, u := range users {
		if u.ID != sess.UserID {
			out = append(out, u)
		}
	}
	return out, nil
}
