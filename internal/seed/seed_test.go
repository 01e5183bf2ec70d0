package seed

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/harperreed/forma/internal/auth"
	"github.com/harperreed/forma/internal/models"
	"github.com/harperreed/forma/internal/storage"
)

func setupStore(t *testing.T) *storage.Store {
	t.Helper()
	s := storage.NewStore(storage.Options{})
	require.NoError(t, s.Initialize(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newSeeder(store *storage.Store, src Source) *Seeder {
	return &Seeder{Store: store, Source: src, Hasher: auth.NewHasher(bcrypt.MinCost)}
}

func TestSeedEmbeddedDatasets(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	res, err := newSeeder(store, EmbeddedSource{}).SeedIfNeeded(ctx)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 3, res.Counts[models.TableUsers])
	assert.Equal(t, 6, res.Counts[models.TableProgress])

	users, err := storage.All[models.User](ctx, store, models.TableUsers)
	require.NoError(t, err)
	require.Len(t, users, 3)

	h := auth.NewHasher(bcrypt.MinCost)
	for _, u := range users {
		assert.True(t, h.Verify(u.PasswordHash, DefaultDemoPassword), "user %s", u.Email)
	}

	progress, err := storage.All[models.ProgressEntry](ctx, store, models.TableProgress)
	require.NoError(t, err)
	for _, p := range progress {
		assert.True(t, strings.HasPrefix(p.ID, "progress_"), "generated id %s", p.ID)
		_, known := models.MetricUnits[p.Metric]
		assert.True(t, known, "metric %s normalized", p.Metric)
	}

	seeded, err := store.Flag(ctx, Flag)
	require.NoError(t, err)
	assert.True(t, seeded)
}

func TestSeedIsIdempotent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	s := newSeeder(store, EmbeddedSource{})

	_, err := s.SeedIfNeeded(ctx)
	require.NoError(t, err)

	res, err := s.SeedIfNeeded(ctx)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, 0, res.Total())

	users, err := store.GetAll(ctx, models.TableUsers)
	require.NoError(t, err)
	assert.Len(t, users, 3)
}

func TestSeedSkipsWhenFlagSet(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	require.NoError(t, store.SetFlag(ctx, Flag, true))

	res, err := newSeeder(store, EmbeddedSource{}).SeedIfNeeded(ctx)
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	users, err := store.GetAll(ctx, models.TableUsers)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestSeedDirSourceMissingFilesAreEmpty(t *testing.T) {
	dir := t.TempDir()
	users := `[{"name":"Kim","email":"kim@example.com","role":"client","passwordHash":"` + auth.LegacyDigest("pw1234") + `","createdAt":"2024-01-01T00:00:00Z"}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.json"), []byte(users), 0600))

	store := setupStore(t)
	ctx := context.Background()
	s := newSeeder(store, DirSource{Dir: dir})
	s.DemoPassword = "other-demo"

	res, err := s.SeedIfNeeded(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total())

	all, err := storage.All[models.User](ctx, store, models.TableUsers)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, strings.HasPrefix(all[0].ID, "users_"))
	assert.Equal(t, auth.LegacyDigest("pw1234"), all[0].PasswordHash, "existing hash kept")
}

func TestSeedInvalidRecordLeavesFlagUnset(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schedules.json"),
		[]byte(`[{"id":"s1","clientId":"c","date":"someday","time":"07:00"}]`), 0600))

	store := setupStore(t)
	ctx := context.Background()

	_, err := newSeeder(store, DirSource{Dir: dir}).SeedIfNeeded(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrValidation))

	seeded, err := store.Flag(ctx, Flag)
	require.NoError(t, err)
	assert.False(t, seeded)
}

func TestSeedMalformedDataset(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plans.json"), []byte(`{"not":"an array"}`), 0600))

	_, err := DirSource{Dir: dir}.Load(context.Background(), models.TablePlans)
	assert.Error(t, err)
}

func TestPrepare(t *testing.T) {
	raw, err := prepare(models.TableUsers, json.RawMessage(`{"name":"A","passwordHash":""}`), "HASH")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "HASH", got["passwordHash"])
	assert.NotEmpty(t, got["id"])

	_, err = prepare(models.TablePlans, json.RawMessage(`null`), "")
	assert.Error(t, err)
}
