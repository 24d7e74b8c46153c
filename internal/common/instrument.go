package common

import "fmt"

// Instrument is an immutable trading instrument definition. Prices and
// quantities are int64 minor units; every price must be a multiple of Tick
// and every quantity a multiple of Lot.
type Instrument struct {
	ID     InstrumentID
	Symbol string
	Tick   int64 // minimum price increment
	Lot    int64 // minimum quantity increment
}

func (ins Instrument) String() string {
	return string(ins.ID)
}

// ValidatePrice checks tick alignment.
func (ins Instrument) ValidatePrice(price int64) error {
	if price <= 0 || price%ins.Tick != 0 {
		return fmt.Errorf("%w: price %d not aligned to tick %d", ErrValidation, price, ins.Tick)
	}
	return nil
}

// ValidateQuantity checks lot alignment.
func (ins Instrument) ValidateQuantity(qty int64) error {
	if qty <= 0 || qty%ins.Lot != 0 {
		return fmt.Errorf("%w: quantity %d not aligned to lot %d", ErrValidation, qty, ins.Lot)
	}
	return nil
}
