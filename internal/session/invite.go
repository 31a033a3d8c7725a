package session

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// Invite is the shareable reference to a room: the room id plus the
// transport mode the room lives on. Nothing else is encoded.
type Invite struct {
	RoomID string
	Mode   Mode
}

const inviteScheme = "draftroom://"

func (i Invite) String() string {
	return fmt.Sprintf("%s%s/%s", inviteScheme, i.Mode, i.RoomID)
}

// QR renders the invite as a PNG for cross-device sharing.
func (i Invite) QR() ([]byte, error) {
	return qrcode.Encode(i.String(), qrcode.Medium, 256)
}

// ParseInvite reads an invite reference back into its two fields.
func ParseInvite(s string) (Invite, error) {
	raw, ok := strings.CutPrefix(strings.TrimSpace(s), inviteScheme)
	if !ok {
		return Invite{}, fmt.Errorf("session: invite %q missing %s prefix", s, inviteScheme)
	}
	mode, roomID, ok := strings.Cut(raw, "/")
	if !ok || roomID == "" {
		return Invite{}, fmt.Errorf("session: invite %q missing room id", s)
	}
	switch Mode(mode) {
	case ModeBus, ModeRelay:
		return Invite{RoomID: roomID, Mode: Mode(mode)}, nil
	default:
		return Invite{}, fmt.Errorf("session: invite %q has unknown transport mode %q", s, mode)
	}
}
