package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// KeyType classifies physical keys and fixes their custody policy.
type KeyType string

const (
	KeyRoom     KeyType = "ROOM"
	KeyMailbox  KeyType = "MAILBOX"
	KeyResource KeyType = "RESOURCE"
	KeyStorage  KeyType = "STORAGE"
	KeyMaster   KeyType = "MASTER"
)

// SecurityLevel ranks how sensitive a key is.
type SecurityLevel string

const (
	SecurityLow      SecurityLevel = "LOW"
	SecurityMedium   SecurityLevel = "MEDIUM"
	SecurityHigh     SecurityLevel = "HIGH"
	SecurityCritical SecurityLevel = "CRITICAL"
)

// DefaultReplacementCost applies when a key has no replacement cost of its own.
var DefaultReplacementCost = decimal.NewFromInt(50)

// KeyTypeDefaults holds the per-type values copied onto a Key when it is created.
type KeyTypeDefaults struct {
	SecurityLevel       SecurityLevel
	DepositAmount       decimal.Decimal
	MaxIssueHours       int
	ReplacementCost     decimal.Decimal
	PermanentAssignment bool // one active assignment of this type per user
}

var keyTypeDefaults = map[KeyType]KeyTypeDefaults{
	KeyRoom:     {SecurityHigh, decimal.NewFromInt(50), 24 * 365, decimal.NewFromInt(75), true},
	KeyMailbox:  {SecurityLow, decimal.NewFromInt(10), 24 * 365, decimal.NewFromInt(15), true},
	KeyResource: {SecurityMedium, decimal.NewFromInt(20), 4, decimal.NewFromInt(30), false},
	KeyStorage:  {SecurityMedium, decimal.NewFromInt(20), 72, decimal.NewFromInt(25), false},
	KeyMaster:   {SecurityCritical, decimal.Zero, 2, decimal.NewFromInt(250), false},
}

// KeyDefaultsFor returns the custody policy for t; unknown types get RESOURCE policy.
func KeyDefaultsFor(t KeyType) KeyTypeDefaults {
	if d, ok := keyTypeDefaults[t]; ok {
		return d
	}
	return keyTypeDefaults[KeyResource]
}

// ParseKeyType parses a key type tag case-insensitively.
func ParseKeyType(s string) (KeyType, bool) {
	t := KeyType(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := keyTypeDefaults[t]
	return t, ok
}
