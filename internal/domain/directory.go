// ABOUTME: User directory lookups tolerant of dangling references.
// ABOUTME: Name resolves missing users to "Unknown".
package domain

import (
	"context"
	"strings"

	"github.com/harperreed/forma/internal/models"
	"github.com/harperreed/forma/internal/storage"
)

// UnknownName is shown for references to users that no longer exist.
const UnknownName = "Unknown"

// Directory looks up users.
type Directory struct {
	store *storage.Store
}

// Users returns every user in insertion order.
func (d *Directory) Users(ctx context.Context) ([]*models.User, error) {
	return storage.All[models.User](ctx, d.store, models.TableUsers)
}

// Get returns a user or nil.
func (d *Directory) Get(ctx context.Context, id string) (*models.User, error) {
	return storage.Find[models.User](ctx, d.store, models.TableUsers, id)
}

// requireClient fails with a validation error on table unless id names a
// user with the client role.
func (d *Directory) requireClient(ctx context.Context, table models.Table, id string) error {
	u, err := d.Get(ctx, id)
	if err != nil {
		return err
	}
	if u == nil || u.Role != models.RoleClient {
		v := models.Violations{}
		v.Add("clientId", "must be an existing client")
		return v.Err(table)
	}
	return nil
}

// Name returns the user's display name, or UnknownName.
func (d *Directory) Name(ctx context.Context, id string) string {
	u, err := d.Get(ctx, id)
	if err != nil || u == nil {
		return UnknownName
	}
	return u.Name
}

// WithRole returns users having role.
func (d *Directory) WithRole(ctx context.Context, role models.Role) ([]*models.User, error) {
	users, err := d.Users(ctx)
	if err != nil {
		return nil, err
	}
	var out []*models.User
	for _, u := range users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

// SearchClients returns clients whose name or email contains query,
// case-insensitively. An empty query matches every client.
func (d *Directory) SearchClients(ctx context.Context, query string) ([]*models.User, error) {
	clients, err := d.WithRole(ctx, models.RoleClient)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return clients, nil
	}
	var out []*models.User
	for _, u := range clients {
		if strings.Contains(strings.ToLower(u.Name+" "+u.Email), q) {
			out = append(out, u)
		}
	}
	return out, nil
}
