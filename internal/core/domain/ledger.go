package domain

import "time"

// LedgerEntryKind distinguishes credit grants from spends.
type LedgerEntryKind string

const (
	LedgerGrant LedgerEntryKind = "grant"
	LedgerSpend LedgerEntryKind = "spend"
)

// LedgerEntry records a single credit movement in the audit journal.
// The journal is observability only; the session's balance, not the
// journal, is what gates consumption.
type LedgerEntry struct {
	UserID       string          `json:"user_id"`
	Kind         LedgerEntryKind `json:"kind"`
	Amount       int             `json:"amount"`
	BalanceAfter int             `json:"balance_after"`
	Reason       string          `json:"reason"`
	Timestamp    time.Time       `json:"timestamp"`
}
