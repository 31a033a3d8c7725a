// Package cards supplies the flat card lists a draft room is built from,
// either from a remote catalog or a pasted free-text list. It also names the
// enrichment boundary used for presentation metadata; nothing here feeds
// engine logic beyond the bare card values.
package cards

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/cubehall/draftroom/internal/draft"
)

// catalogCard is the shape the remote catalog returns per card.
type catalogCard struct {
	Name     string   `json:"name"`
	CMC      int      `json:"cmc"`
	Colors   []string `json:"colors"`
	TypeLine string   `json:"type_line"`
	ManaCost string   `json:"mana_cost"`
}

// FetchCube downloads the card list for a catalog cube id. Every returned
// card gets a fresh draft-instance id.
func FetchCube(ctx context.Context, client *http.Client, baseURL, cubeID string) ([]draft.Card, error) {
	if client == nil {
		client = http.DefaultClient
	}
	url := fmt.Sprintf("%s/cube/%s/cards", strings.TrimRight(baseURL, "/"), cubeID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cards: fetch cube %s: %w", cubeID, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cards: fetch cube %s: unexpected status %d", cubeID, res.StatusCode)
	}

	var raw []catalogCard
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("cards: decode cube %s: %w", cubeID, err)
	}

	out := make([]draft.Card, 0, len(raw))
	for _, c := range raw {
		out = append(out, draft.Card{
			ID:       uuid.NewString(),
			Name:     c.Name,
			CMC:      c.CMC,
			Colors:   c.Colors,
			TypeLine: c.TypeLine,
			ManaCost: c.ManaCost,
		})
	}
	return out, nil
}

// ParseList reads a free-text card list, one card per line, with an optional
// leading count ("4 Lightning Bolt"). Blank lines and lines starting with
// '#' or "//" are skipped. Each copy becomes its own card instance.
func ParseList(text string) []draft.Card {
	var out []draft.Card
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		count := 1
		name := line
		if first, rest, ok := strings.Cut(line, " "); ok {
			if n, err := strconv.Atoi(strings.TrimSuffix(first, "x")); err == nil && n > 0 {
				count = n
				name = strings.TrimSpace(rest)
			}
		}
		if name == "" {
			continue
		}
		for i := 0; i < count; i++ {
			out = append(out, draft.Card{ID: uuid.NewString(), Name: name})
		}
	}
	return out
}

// Enricher augments bare cards with display metadata. Presentation only; the
// engine never depends on anything an enricher adds.
type Enricher interface {
	Enrich(ctx context.Context, cards []draft.Card) ([]draft.Card, error)
}

// NopEnricher passes cards through untouched.
type NopEnricher struct{}

func (NopEnricher) Enrich(_ context.Context, cards []draft.Card) ([]draft.Card, error) {
	return cards, nil
}
