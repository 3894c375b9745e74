package terminal

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TerminalType distinguishes dedicated card machines from phone/tablet readers.
type TerminalType string

const (
	TypeDedicated   TerminalType = "DEDICATED"
	TypeDeviceBased TerminalType = "DEVICE_BASED"
)

// Capabilities is the set of input methods a terminal reported during detection.
type Capabilities struct {
	NFC         bool `json:"nfc" yaml:"nfc"`
	CardPresent bool `json:"card_present" yaml:"card_present"`
	Chip        bool `json:"chip" yaml:"chip"`
	Swipe       bool `json:"swipe" yaml:"swipe"`
	Tap         bool `json:"tap" yaml:"tap"`
}

// Terminal is a card-payment acceptance endpoint on the local network.
type Terminal struct {
	ID           string       `json:"id" yaml:"id"`
	Name         string       `json:"name" yaml:"name"`
	Address      string       `json:"address" yaml:"address"`
	Port         int          `json:"port" yaml:"port"`
	Credential   string       `json:"-" yaml:"credential"`
	TerminalType TerminalType `json:"terminal_type" yaml:"terminal_type"`
	Capabilities Capabilities `json:"capabilities" yaml:"capabilities"`
	SerialNumber string       `json:"serial_number,omitempty" yaml:"serial_number,omitempty"`
	Model        string       `json:"model,omitempty" yaml:"model,omitempty"`
	LastVerified time.Time    `json:"last_verified,omitempty" yaml:"last_verified,omitempty"`
}

// BaseURL returns the root of the terminal's local API.
func (t Terminal) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", t.Address, t.Port)
}

// Verified reports whether the terminal passed a liveness check within maxAge.
func (t Terminal) Verified(maxAge time.Duration) bool {
	return !t.LastVerified.IsZero() && time.Since(t.LastVerified) <= maxAge
}

// terminalNamespace seeds deterministic terminal IDs so the same physical device
// keeps its identity across rediscovery.
var terminalNamespace = uuid.MustParse("9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d")

// DeterministicID derives a stable terminal id from its address and serial number.
func DeterministicID(address, serial string) string {
	return uuid.NewSHA1(terminalNamespace, []byte(address+":"+serial)).String()
}
