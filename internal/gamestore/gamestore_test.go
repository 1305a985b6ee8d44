package gamestore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StarecMudrec/CardswoodWebsite/logging"
)

type memoryCache struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: make(map[string]string)}
}

func (c *memoryCache) Set(_ context.Context, key string, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *memoryCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[key], nil
}

func (c *memoryCache) GenerateKey(operation, key string) string {
	return "test:" + operation + ":" + key
}

func TestAddCard(t *testing.T) {
	mockdb, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockdb.Close()

	store := NewStoreWithDB(mockdb, nil, logging.GetSugaredLogger())

	mock.ExpectExec(`INSERT INTO user_cards`).
		WithArgs(int64(777), "uuid-x").
		WillReturnResult(sqlmock.NewResult(1, 1))

	assert.NoError(t, store.AddCard(context.Background(), 777, "uuid-x"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetPremium(t *testing.T) {
	mockdb, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockdb.Close()

	store := NewStoreWithDB(mockdb, nil, logging.GetSugaredLogger())

	mock.ExpectExec(`INSERT INTO game_users`).
		WithArgs(int64(777), 30).
		WillReturnResult(sqlmock.NewResult(1, 1))

	assert.NoError(t, store.SetPremium(context.Background(), 777, 30))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddPoints(t *testing.T) {
	mockdb, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockdb.Close()

	store := NewStoreWithDB(mockdb, nil, logging.GetSugaredLogger())

	mock.ExpectExec(`INSERT INTO game_users`).
		WithArgs(int64(777), int64(500)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	assert.NoError(t, store.AddPoints(context.Background(), 777, 500))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCardsByRarity(t *testing.T) {
	t.Run("QueriesAndCaches", func(t *testing.T) {
		mockdb, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer mockdb.Close()

		catalogCache := newMemoryCache()
		store := NewStoreWithDB(mockdb, catalogCache, logging.GetSugaredLogger())

		mock.ExpectQuery(`SELECT uuid FROM card`).
			WithArgs("common", "rare").
			WillReturnRows(sqlmock.NewRows([]string{"uuid"}).AddRow("c1").AddRow("r1"))

		uuids, err := store.CardsByRarity(context.Background(), []string{"common", "rare"})
		require.NoError(t, err)
		assert.Equal(t, []string{"c1", "r1"}, uuids)

		// second read is served from cache, no second query expected
		uuids, err = store.CardsByRarity(context.Background(), []string{"common", "rare"})
		require.NoError(t, err)
		assert.Equal(t, []string{"c1", "r1"}, uuids)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("EmptyRequest", func(t *testing.T) {
		mockdb, _, err := sqlmock.New()
		require.NoError(t, err)
		defer mockdb.Close()

		store := NewStoreWithDB(mockdb, nil, logging.GetSugaredLogger())

		uuids, err := store.CardsByRarity(context.Background(), nil)
		assert.NoError(t, err)
		assert.Empty(t, uuids)
	})
}

func TestFindCardByName(t *testing.T) {
	mockdb, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockdb.Close()

	store := NewStoreWithDB(mockdb, nil, logging.GetSugaredLogger())

	t.Run("Found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT uuid FROM card`).
			WithArgs("%дровосек%").
			WillReturnRows(sqlmock.NewRows([]string{"uuid"}).AddRow("uuid-wood"))

		id, err := store.FindCardByName(context.Background(), "%дровосек%")
		require.NoError(t, err)
		assert.Equal(t, "uuid-wood", id)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(`SELECT uuid FROM card`).
			WithArgs("%призрак%").
			WillReturnRows(sqlmock.NewRows([]string{"uuid"}))

		_, err := store.FindCardByName(context.Background(), "%призрак%")
		assert.ErrorIs(t, err, ErrCardNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
