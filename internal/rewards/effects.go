package rewards

// EffectKind selects which Effect fields matter. The set is closed: the
// granter switches over it exhaustively.
type EffectKind string

const (
	EffectDirectCard   EffectKind = "direct_card"
	EffectSubscription EffectKind = "subscription"
	EffectRandomPack   EffectKind = "random_pack"
	EffectNamedCard    EffectKind = "named_card"
	EffectPointsBonus  EffectKind = "points_bonus"
)

// Effect describes what buying one unit of a catalog position grants in
// the game.
type Effect struct {
	Kind EffectKind

	// direct_card
	CardUUID string

	// subscription
	Premium     bool
	PremiumDays int

	// random_pack
	PackTier string

	// named_card
	NamePattern  string
	FallbackUUID string

	// points_bonus, also the optional subscription bonus
	BonusPoints int64
}

// PoolDraw is one slot group of a pack: how many uniform draws to take
// from which rarity pool. Empty Rarities means the whole catalog.
type PoolDraw struct {
	Rarities []string
	Draws    int
}

// DefaultEffects is the shop catalog wiring. The handler receives it from
// main, nothing inside the granter depends on these concrete ids.
func DefaultEffects() map[string]Effect {
	return map[string]Effect{
		"premium-month": {
			Kind:        EffectSubscription,
			Premium:     true,
			PremiumDays: 30,
			BonusPoints: 500,
		},
		"pack-standard": {
			Kind:     EffectRandomPack,
			PackTier: "standard",
		},
		"pack-collector": {
			Kind:     EffectRandomPack,
			PackTier: "collector",
		},
		"card-woodcutter": {
			Kind:         EffectNamedCard,
			NamePattern:  "%дровосек%",
			FallbackUUID: "9c1f2a34-0000-4000-8000-000000000001",
		},
		"points-1000": {
			Kind:        EffectPointsBonus,
			BonusPoints: 1000,
		},
	}
}

// DefaultPacks defines the draw composition per pack tier.
func DefaultPacks() map[string][]PoolDraw {
	return map[string][]PoolDraw{
		"standard": {
			{Rarities: []string{"common"}, Draws: 3},
			{Rarities: nil, Draws: 1},
			{Rarities: []string{"epic", "legendary"}, Draws: 1},
		},
		"collector": {
			{Rarities: []string{"rare"}, Draws: 3},
			{Rarities: []string{"epic", "legendary"}, Draws: 2},
		},
	}
}
