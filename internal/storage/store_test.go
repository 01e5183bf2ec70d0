// ABOUTME: Tests for the Store facade.
// ABOUTME: Covers fallback selection, validation, typed helpers and table locks.
package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/harperreed/forma/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(Options{Durable: SQLiteOpener(filepath.Join(t.TempDir(), "forma.db"))})
	require.NoError(t, s.Initialize(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreUninitialized(t *testing.T) {
	ctx := context.Background()
	s := NewStore(Options{})

	_, err := s.GetAll(ctx, models.TableUsers)
	assert.ErrorIs(t, err, ErrUninitialized)

	_, err = s.Get(ctx, models.TableUsers, "x")
	assert.ErrorIs(t, err, ErrUninitialized)

	_, err = s.Put(ctx, models.TableUsers, models.NewUser("A", "a@b.co", models.RoleClient, "h"))
	assert.ErrorIs(t, err, ErrUninitialized)

	_, err = s.PutRaw(ctx, models.TableUsers, []byte(`{}`))
	assert.ErrorIs(t, err, ErrUninitialized)

	assert.ErrorIs(t, s.Delete(ctx, models.TableUsers, "x"), ErrUninitialized)
	assert.ErrorIs(t, s.SetFlag(ctx, "f", true), ErrUninitialized)
	_, err = s.Flag(ctx, "f")
	assert.ErrorIs(t, err, ErrUninitialized)
	assert.Equal(t, "", s.Engine())
}

func TestStoreFallsBackWhenDurableFails(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	s := NewStore(Options{
		Durable: func(ctx context.Context) (Engine, error) {
			return nil, errors.New("disk unavailable")
		},
		Logger: zap.New(core),
	})

	require.NoError(t, s.Initialize(context.Background()))
	defer s.Close()

	assert.True(t, s.Fallback())
	assert.Equal(t, "memory", s.Engine())
	assert.Equal(t, 1, logs.FilterMessage("durable storage unavailable, using fallback").Len())

	_, err := s.Put(context.Background(), models.TableUsers, models.NewUser("A", "a@b.co", models.RoleClient, "h"))
	assert.NoError(t, err)
}

func TestStoreInitializeIsIdempotent(t *testing.T) {
	opens := 0
	s := NewStore(Options{Durable: func(ctx context.Context) (Engine, error) {
		opens++
		return NewFlatEngine(NewMemoryKV()), nil
	}})
	ctx := context.Background()

	require.NoError(t, s.Initialize(ctx))
	require.NoError(t, s.Initialize(ctx))
	assert.Equal(t, 1, opens)
	assert.False(t, s.Fallback())
}

func TestStoreFallbackFailure(t *testing.T) {
	fail := func(ctx context.Context) (Engine, error) { return nil, errors.New("nope") }
	s := NewStore(Options{Durable: fail, Fallback: fail})

	err := s.Initialize(context.Background())
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "open", ioErr.Op)
}

func TestStorePutGetDelete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	u := models.NewUser("Ana", "ana@example.com", models.RoleClient, "hash")
	_, err := s.Put(ctx, models.TableUsers, u)
	require.NoError(t, err)

	got, err := Find[models.User](ctx, s, models.TableUsers, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.Email, got.Email)
	assert.True(t, u.CreatedAt.Equal(got.CreatedAt))

	missing, err := Find[models.User](ctx, s, models.TableUsers, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, s.Delete(ctx, models.TableUsers, u.ID))
	require.NoError(t, s.Delete(ctx, models.TableUsers, u.ID))

	rec, err := s.Get(ctx, models.TableUsers, u.ID)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestStoreRejectsInvalidRecord(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, models.TableProgress, models.NewProgressEntry("usr_1", "not-a-date", models.MetricWeightKg, 80))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrValidation))

	all, err := s.GetAll(ctx, models.TableProgress)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStoreUnknownTable(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.GetAll(ctx, "bogus")
	assert.ErrorIs(t, err, ErrUnknownTable)
	_, err = s.PutRaw(ctx, "bogus", []byte(`{"id":"x"}`))
	assert.ErrorIs(t, err, ErrUnknownTable)
	assert.ErrorIs(t, s.Delete(ctx, "bogus", "x"), ErrUnknownTable)
}

func TestStorePutRawNormalizesLegacyMetric(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.PutRaw(ctx, models.TableProgress,
		[]byte(`{"id":"prog_1","userId":"usr_1","date":"2024-01-02","metric":"bodyFatPercent","value":18.5}`))
	require.NoError(t, err)

	entries, err := All[models.ProgressEntry](ctx, s, models.TableProgress)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.MetricBodyFatPercent, entries[0].Metric)

	_, err = s.PutRaw(ctx, models.TableProgress, []byte(`not json`))
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestStoreIOErrorWrapsEngineFailure(t *testing.T) {
	s := NewStore(Options{Durable: func(ctx context.Context) (Engine, error) {
		return &brokenEngine{}, nil
	}})
	require.NoError(t, s.Initialize(context.Background()))

	_, err := s.GetAll(context.Background(), models.TableUsers)
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, models.TableUsers, ioErr.Table)
	assert.ErrorIs(t, err, errBroken)
}

func TestStoreCloseUninitializes(t *testing.T) {
	s := setupTestStore(t)
	require.NoError(t, s.Close())

	_, err := s.GetAll(context.Background(), models.TableUsers)
	assert.ErrorIs(t, err, ErrUninitialized)
}

func TestStoreLockSerializes(t *testing.T) {
	s := setupTestStore(t)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := s.Lock(models.TableSchedules)
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)

	// Locks on different tables are independent.
	unlockA := s.Lock(models.TableUsers)
	unlockB := s.Lock(models.TableSchedules)
	unlockB()
	unlockA()
}

var errBroken = errors.New("broken engine")

type brokenEngine struct{}

func (brokenEngine) Name() string { return "broken" }
func (brokenEngine) GetAll(context.Context, models.Table) ([][]byte, error) {
	return nil, errBroken
}
func (brokenEngine) Get(context.Context, models.Table, string) ([]byte, error) {
	return nil, errBroken
}
func (brokenEngine) Put(context.Context, models.Table, string, []byte) error { return errBroken }
func (brokenEngine) Delete(context.Context, models.Table, string) error      { return errBroken }
func (brokenEngine) Flag(context.Context, string) (bool, error)              { return false, errBroken }
func (brokenEngine) SetFlag(context.Context, string, bool) error             { return errBroken }
func (brokenEngine) Close() error                                            { return nil }
