package draft

import (
	"fmt"
	"math/rand"
)

// Shuffle permutes cards in place. Hosts shuffle once before dealing so the
// partition itself can stay deterministic.
func Shuffle(rng *rand.Rand, cards []Card) {
	rng.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
}

// GeneratePacks deals cards into packs indexed [seat][packIndex]. The
// partition is deterministic: sequential slices of the input, seat by seat,
// pack by pack. Each pack gets its own backing array so picks on one pack
// never alias another.
func GeneratePacks(cards []Card, seats, packsPerSeat, packSize int) ([][][]Card, error) {
	if seats < 2 {
		return nil, fmt.Errorf("draft: need at least 2 seats, got %d", seats)
	}
	if packsPerSeat < 1 || packSize < 1 {
		return nil, fmt.Errorf("draft: invalid pack shape %dx%d", packsPerSeat, packSize)
	}
	need := seats * packsPerSeat * packSize
	if len(cards) < need {
		return nil, fmt.Errorf("draft: %d cards cannot fill %d seats x %d packs x %d cards", len(cards), seats, packsPerSeat, packSize)
	}

	packs := make([][][]Card, seats)
	idx := 0
	for seat := 0; seat < seats; seat++ {
		packs[seat] = make([][]Card, packsPerSeat)
		for p := 0; p < packsPerSeat; p++ {
			pack := make([]Card, packSize)
			copy(pack, cards[idx:idx+packSize])
			packs[seat][p] = pack
			idx += packSize
		}
	}
	return packs, nil
}
