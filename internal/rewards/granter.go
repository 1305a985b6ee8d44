package rewards

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"github.com/StarecMudrec/CardswoodWebsite/internal/gamestore"
	"github.com/StarecMudrec/CardswoodWebsite/models"
)

// GameStore is the slice of the game database the granter needs.
type GameStore interface {
	AddCard(ctx context.Context, userID int64, cardUUID string) error
	SetPremium(ctx context.Context, userID int64, days int) error
	AddPoints(ctx context.Context, userID int64, points int64) error
	CardsByRarity(ctx context.Context, rarities []string) ([]string, error)
	FindCardByName(ctx context.Context, pattern string) (string, error)
}

// Granter translates paid order items into game rewards. Grants run after
// the order is already marked paid, so everything here is best effort:
// one item failing must not cost the user the rest of the order.
type Granter struct {
	store   GameStore
	effects map[string]Effect
	packs   map[string][]PoolDraw
	logger  *zap.SugaredLogger

	// overridable in tests for deterministic draws
	randIntn func(n int) int
}

func NewGranter(store GameStore, effects map[string]Effect, packs map[string][]PoolDraw, logger *zap.SugaredLogger) *Granter {
	return &Granter{
		store:    store,
		effects:  effects,
		packs:    packs,
		logger:   logger,
		randIntn: rand.Intn,
	}
}

// Grant applies every line item of a paid order. Failures are logged per
// item and never abort the remaining items.
func (g *Granter) Grant(ctx context.Context, order *models.Order) {
	if order.UserID == nil {
		g.logger.Warnw("order has no user, nothing to grant", "order", order.OrderNumber)
		return
	}
	userID := *order.UserID

	for _, item := range order.Items {
		effect, ok := g.effects[item.ID]
		if !ok {
			g.logger.Warnw("no reward effect for catalog id, skipping",
				"order", order.OrderNumber, "item", item.ID)
			continue
		}

		quantity := item.Quantity
		if quantity < 1 {
			quantity = 1
		}

		for i := 0; i < quantity; i++ {
			if err := g.apply(ctx, userID, effect); err != nil {
				g.logger.Errorw("failed to grant item, continuing with the rest",
					"order", order.OrderNumber, "item", item.ID, "user", userID, "error", err)
			}
		}
	}
}

func (g *Granter) apply(ctx context.Context, userID int64, effect Effect) error {
	switch effect.Kind {
	case EffectDirectCard:
		return g.store.AddCard(ctx, userID, effect.CardUUID)

	case EffectSubscription:
		days := effect.PremiumDays
		if days <= 0 {
			days = 30
		}
		if err := g.store.SetPremium(ctx, userID, days); err != nil {
			return err
		}
		if effect.BonusPoints > 0 {
			return g.store.AddPoints(ctx, userID, effect.BonusPoints)
		}
		return nil

	case EffectRandomPack:
		return g.openPack(ctx, userID, effect.PackTier)

	case EffectNamedCard:
		cardUUID, err := g.store.FindCardByName(ctx, effect.NamePattern)
		if errors.Is(err, gamestore.ErrCardNotFound) {
			if effect.FallbackUUID == "" {
				g.logger.Warnw("named card not found and no fallback configured",
					"pattern", effect.NamePattern, "user", userID)
				return nil
			}
			cardUUID = effect.FallbackUUID
		} else if err != nil {
			return err
		}
		return g.store.AddCard(ctx, userID, cardUUID)

	case EffectPointsBonus:
		return g.store.AddPoints(ctx, userID, effect.BonusPoints)

	default:
		return fmt.Errorf("unknown effect kind %q", effect.Kind)
	}
}

// openPack draws cards uniformly with replacement from the tier's rarity
// pools. An empty pool is a catalog misconfiguration: warn and draw
// nothing from it, the purchase must still go through.
func (g *Granter) openPack(ctx context.Context, userID int64, tier string) error {
	draws, ok := g.packs[tier]
	if !ok {
		g.logger.Warnw("unknown pack tier, skipping", "tier", tier, "user", userID)
		return nil
	}

	for _, draw := range draws {
		pool, err := g.store.CardsByRarity(ctx, poolRarities(draw))
		if err != nil {
			g.logger.Errorw("failed to load card pool", "tier", tier, "rarities", draw.Rarities, "error", err)
			continue
		}
		if len(pool) == 0 {
			g.logger.Warnw("card pool is empty", "tier", tier, "rarities", draw.Rarities)
			continue
		}

		for i := 0; i < draw.Draws; i++ {
			cardUUID := pool[g.randIntn(len(pool))]
			if err = g.store.AddCard(ctx, userID, cardUUID); err != nil {
				g.logger.Errorw("failed to add drawn card, continuing",
					"card", cardUUID, "user", userID, "error", err)
			}
		}
	}

	return nil
}

func poolRarities(draw PoolDraw) []string {
	if len(draw.Rarities) > 0 {
		return draw.Rarities
	}
	return []string{"common", "rare", "epic", "legendary"}
}
