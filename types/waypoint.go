package types

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/tendermint/ledgersync/crypto"
	tmbytes "github.com/tendermint/ledgersync/libs/bytes"
)

// Waypoint is an out-of-band trusted commitment to a ledger info.
type Waypoint struct {
	Version Version          `json:"version"`
	Hash    tmbytes.HexBytes `json:"hash"`
}

// NewWaypoint returns the waypoint of li.
func NewWaypoint(li *LedgerInfo) *Waypoint {
	return &Waypoint{Version: li.Version, Hash: li.Hash()}
}

// ParseWaypoint parses the "<version>:<hex hash>" form produced by String.
func ParseWaypoint(s string) (*Waypoint, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("waypoint %q must be <version>:<hash>", s)
	}
	version, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("waypoint version: %w", err)
	}
	hash, err := hex.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("waypoint hash: %w", err)
	}
	if len(hash) != crypto.HashSize {
		return nil, fmt.Errorf("waypoint hash must be %d bytes, got %d", crypto.HashSize, len(hash))
	}
	return &Waypoint{Version: Version(version), Hash: hash}, nil
}

// Matches reports whether li is the ledger info this waypoint commits to.
func (w *Waypoint) Matches(li *LedgerInfo) bool {
	return li != nil && li.Version == w.Version && bytes.Equal(li.Hash(), w.Hash)
}

func (w *Waypoint) String() string {
	return fmt.Sprintf("%d:%x", w.Version, []byte(w.Hash))
}
