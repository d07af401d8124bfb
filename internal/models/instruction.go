package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Instruction is a committed instruction in the node journal.
// Rows are written inside the same transaction as the state change they
// describe, so a failed instruction leaves no row behind.
type Instruction struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Kind        string    `gorm:"index;not null" json:"kind"`
	Signer      string    `gorm:"index;not null" json:"signer"`
	Bot         string    `gorm:"index;not null" json:"bot"`
	Market      string    `json:"market,omitempty"`
	Amount      Uint64    `json:"amount,omitempty"`
	IsBuy       bool      `json:"is_buy,omitempty"`
	TradeAmount Uint64    `json:"trade_amount,omitempty"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// Uint64 is a full-range uint64 column. database/sql refuses uint64 values
// with the high bit set, so it is stored as the int64 with the same bits.
type Uint64 uint64

// Value implements driver.Valuer.
func (u Uint64) Value() (driver.Value, error) {
	return int64(u), nil
}

// Scan implements sql.Scanner.
func (u *Uint64) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*u = 0
	case int64:
		*u = Uint64(v)
	default:
		return fmt.Errorf("cannot scan %T into Uint64", src)
	}
	return nil
}
