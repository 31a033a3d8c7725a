package game

// CubeSourceKind says where a card list came from.
type CubeSourceKind string

const (
	// CubeSourceCatalog is a remote catalog identifier, e.g. a cube id.
	CubeSourceCatalog CubeSourceKind = "catalog"
	// CubeSourceList is a pasted free-text card list.
	CubeSourceList CubeSourceKind = "list"
)

// CubeSource describes the provenance of the card list a room drafts from.
type CubeSource struct {
	Kind CubeSourceKind `json:"kind"`
	Ref  string         `json:"ref,omitempty"`
}

// Options are the tunables for a single draft room.
type Options struct {
	PacksPerSeat int `json:"packsPerSeat"`
	PackSize     int `json:"packSize"`
	// BaseTimer is the seconds allowed for the first pick of a pack. The
	// engine carries the value for display; it does not enforce it.
	BaseTimer int `json:"baseTimer"`
}

// DefaultOptions mirrors a standard three-pack booster draft.
func DefaultOptions() Options {
	return Options{
		PacksPerSeat: 3,
		PackSize:     15,
		BaseTimer:    60,
	}
}
