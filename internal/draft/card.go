package draft

// Card is a single draftable card. ID is unique per draft instance, not per
// printed card: two copies of the same named card carry distinct IDs. Name is
// the identity used for grouping and display.
type Card struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	CMC      int      `json:"cmc,omitempty"`
	Colors   []string `json:"colors,omitempty"`
	TypeLine string   `json:"typeLine,omitempty"`
	ManaCost string   `json:"manaCost,omitempty"`
}

// Player is one draft seat. Seat is the stable index for the draft's
// lifetime. ClientID is the network identity of the human occupying the seat
// and is empty for bots.
type Player struct {
	Seat      int    `json:"seat"`
	Name      string `json:"name"`
	IsBot     bool   `json:"isBot"`
	ClientID  string `json:"clientId,omitempty"`
	Pool      []Card `json:"pool"`
	Sideboard []Card `json:"sideboard,omitempty"`
	HasPicked bool   `json:"hasPicked"`
}
