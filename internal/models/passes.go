package models

import (
	"errors"
	"fmt"
)

// PassKind is a closed enumeration of sellable pass categories.
type PassKind string

const (
	PassCouple PassKind = "couple"
	PassGirls  PassKind = "girls"
	PassBoys   PassKind = "boys"
)

// KindOrder is the canonical issuance order. Ticket numbers are assigned
// by walking the kinds in this order, so the same booking always yields
// the same ticket set.
var KindOrder = []PassKind{PassCouple, PassGirls, PassBoys}

// unitPricePaise holds per-ticket prices in paise. Prices live on the
// server only; client-supplied amounts are never trusted.
var unitPricePaise = map[PassKind]int64{
	PassCouple: 40000,
	PassGirls:  20000,
	PassBoys:   30000,
}

// UnitPricePaise returns the per-ticket price for a kind, or 0 for an
// unknown kind.
func UnitPricePaise(kind PassKind) int64 {
	return unitPricePaise[kind]
}

// Valid reports whether the kind is one of the known pass categories.
func (k PassKind) Valid() bool {
	_, ok := unitPricePaise[k]
	return ok
}

// PassCounts maps pass kind to the number of tickets requested.
type PassCounts map[PassKind]int

var (
	ErrNoTickets        = errors.New("at least one ticket is required")
	ErrUnknownPassKind  = errors.New("unknown pass kind")
	ErrNegativeCount    = errors.New("ticket count cannot be negative")
	ErrBoysWithoutGirls = errors.New("boys passes require at least one girls pass")
)

// Validate checks counts against the sales rules: only known kinds,
// no negatives, total >= 1, and boys passes only alongside girls passes.
func (c PassCounts) Validate() error {
	for kind, n := range c {
		if !kind.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownPassKind, kind)
		}
		if n < 0 {
			return fmt.Errorf("%w: %s=%d", ErrNegativeCount, kind, n)
		}
	}
	if c.Total() < 1 {
		return ErrNoTickets
	}
	if c[PassBoys] > 0 && c[PassGirls] == 0 {
		return ErrBoysWithoutGirls
	}
	return nil
}

// Total returns the number of tickets across all kinds.
func (c PassCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// AmountPaise returns the server-side price of the whole booking in paise.
func (c PassCounts) AmountPaise() int64 {
	var amount int64
	for kind, n := range c {
		amount += unitPricePaise[kind] * int64(n)
	}
	return amount
}
