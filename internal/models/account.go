package models

import "time"

// Account is a uniquely addressed ledger entry holding native value and,
// for program-owned records, a fixed-layout data blob.
type Account struct {
	Address   string `gorm:"primaryKey;size:44"`
	Lamports  uint64 `gorm:"not null;default:0"`
	Data      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasData reports whether the account carries a program record.
func (a *Account) HasData() bool {
	return len(a.Data) > 0
}
