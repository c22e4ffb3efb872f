package model

import "strings"

// KeyStatus is the inventory state of a physical key.
type KeyStatus string

const (
	KeyAvailable    KeyStatus = "AVAILABLE"
	KeyReserved     KeyStatus = "RESERVED"
	KeyIssued       KeyStatus = "ISSUED"
	KeyLost         KeyStatus = "LOST"
	KeyDamaged      KeyStatus = "DAMAGED"
	KeyOutOfService KeyStatus = "OUT_OF_SERVICE"
	KeyRetired      KeyStatus = "RETIRED"
)

var keyTransitions = map[KeyStatus][]KeyStatus{
	KeyAvailable:    {KeyReserved, KeyIssued, KeyLost, KeyDamaged, KeyOutOfService, KeyRetired},
	KeyReserved:     {KeyAvailable, KeyIssued, KeyLost, KeyDamaged, KeyOutOfService, KeyRetired},
	KeyIssued:       {KeyAvailable, KeyLost},
	KeyLost:         {KeyAvailable, KeyLost, KeyDamaged, KeyRetired},
	KeyDamaged:      {KeyAvailable, KeyOutOfService, KeyLost, KeyRetired},
	KeyOutOfService: {KeyAvailable, KeyDamaged, KeyLost, KeyRetired},
	KeyRetired:      {},
}

// CanTransitionTo reports whether the table allows moving from s to next.
func (s KeyStatus) CanTransitionTo(next KeyStatus) bool {
	for _, allowed := range keyTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the key admits no further transitions.
func (s KeyStatus) IsTerminal() bool {
	next, ok := keyTransitions[s]
	return ok && len(next) == 0
}

// Issuable reports whether a key in s can be handed out.
func (s KeyStatus) Issuable() bool { return s.CanTransitionTo(KeyIssued) }

// Valid reports whether s is a known status.
func (s KeyStatus) Valid() bool {
	_, ok := keyTransitions[s]
	return ok
}

// ParseKeyStatus parses a status tag case-insensitively.
func ParseKeyStatus(raw string) (KeyStatus, bool) {
	s := KeyStatus(strings.ToUpper(strings.TrimSpace(raw)))
	return s, s.Valid()
}
