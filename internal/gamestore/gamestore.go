// Package gamestore talks to the game bot's database. The schema belongs
// to the bot, the shop only writes granted rewards into it. Writes here
// are not transactional with the orders database: an order is marked paid
// first and rewards follow best effort.
package gamestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/StarecMudrec/CardswoodWebsite/internal/cache"
)

// ErrCardNotFound is returned when a catalog lookup matches nothing.
var ErrCardNotFound = errors.New("card not found")

const catalogCacheTTL = 5 * time.Minute

type Store struct {
	db     *sql.DB
	cache  cache.Cache
	logger *zap.SugaredLogger
}

// NewStore opens a separate connection to the game database. catalogCache
// may be nil.
func NewStore(dsn string, catalogCache cache.Cache, logger *zap.SugaredLogger) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to game database: %w", err)
	}

	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping game database: %w", err)
	}

	return &Store{db: db, cache: catalogCache, logger: logger}, nil
}

// NewStoreWithDB wraps an existing connection, used in tests.
func NewStoreWithDB(db *sql.DB, catalogCache cache.Cache, logger *zap.SugaredLogger) *Store {
	return &Store{db: db, cache: catalogCache, logger: logger}
}

// AddCard inserts one granted card for the user.
func (s *Store) AddCard(ctx context.Context, userID int64, cardUUID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_cards (user_id, card_uuid, acquired_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
	`, userID, cardUUID)
	if err != nil {
		return fmt.Errorf("failed to add card %s to user %d: %w", cardUUID, userID, err)
	}

	return nil
}

// SetPremium activates the premium flag and moves the expiry anchor
// forward from now by the given number of days.
func (s *Store) SetPremium(ctx context.Context, userID int64, days int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO game_users (user_id, premium, premium_until, points)
		VALUES ($1, TRUE, CURRENT_TIMESTAMP + $2 * INTERVAL '1 day', 0)
		ON CONFLICT (user_id) DO UPDATE
		SET premium = TRUE,
		    premium_until = CURRENT_TIMESTAMP + $2 * INTERVAL '1 day'
	`, userID, days)
	if err != nil {
		return fmt.Errorf("failed to set premium for user %d: %w", userID, err)
	}

	return nil
}

// AddPoints adds bonus currency to the user's balance.
func (s *Store) AddPoints(ctx context.Context, userID int64, points int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO game_users (user_id, premium, points)
		VALUES ($1, FALSE, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET points = game_users.points + $2
	`, userID, points)
	if err != nil {
		return fmt.Errorf("failed to add %d points to user %d: %w", points, userID, err)
	}

	return nil
}

// CardsByRarity returns the uuids of catalog cards in the given rarity
// categories. Results are cached because the catalog changes rarely and
// every random pack draws from these pools.
func (s *Store) CardsByRarity(ctx context.Context, rarities []string) ([]string, error) {
	if len(rarities) == 0 {
		return nil, nil
	}

	cacheKey := ""
	if s.cache != nil {
		cacheKey = s.cache.GenerateKey("cards_by_rarity", strings.Join(rarities, ","))
		if cached, err := s.cache.Get(ctx, cacheKey); err != nil {
			s.logger.Warnw("catalog cache read failed", "error", err)
		} else if cached != "" {
			var uuids []string
			if err = json.Unmarshal([]byte(cached), &uuids); err == nil {
				return uuids, nil
			}
			s.logger.Warnw("catalog cache entry is malformed", "key", cacheKey, "error", err)
		}
	}

	placeholders := make([]string, len(rarities))
	args := make([]any, len(rarities))
	for i, rarity := range rarities {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = rarity
	}

	query := fmt.Sprintf(`SELECT uuid FROM card WHERE category IN (%s)`, strings.Join(placeholders, ", "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards by rarity: %w", err)
	}
	defer rows.Close()

	var uuids []string
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan card uuid: %w", err)
		}
		uuids = append(uuids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read card uuids: %w", err)
	}

	if s.cache != nil && len(uuids) > 0 {
		encoded, _ := json.Marshal(uuids)
		if err = s.cache.Set(ctx, cacheKey, string(encoded), catalogCacheTTL); err != nil {
			s.logger.Warnw("catalog cache write failed", "error", err)
		}
	}

	return uuids, nil
}

// FindCardByName looks a card up by a name pattern (ILIKE).
func (s *Store) FindCardByName(ctx context.Context, pattern string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT uuid FROM card WHERE name ILIKE $1 ORDER BY id LIMIT 1
	`, pattern).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrCardNotFound
		}
		return "", fmt.Errorf("failed to find card by name: %w", err)
	}

	return id, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
