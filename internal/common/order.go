package common

import "fmt"

// Order is a request to trade an instrument. Once accepted it is owned
// exclusively by the order book arena; every other component holds only the
// OrderID. Quantity is the remaining open quantity and is, with Status, the
// only mutable state.
type Order struct {
	ID            OrderID      // Assigned at submit, monotonic per run
	Instrument    InstrumentID // Which book the order targets
	OrderType     OrderType    //
	Side          Side         // Order side
	Price         int64        // Limit price, required for limit/stop-limit
	StopPrice     int64        // Trigger price, required for stop/stop-limit
	Quantity      int64        // Remaining quantity
	TotalQuantity int64        // Total volume requested
	Owner         AgentID      // Who owns this order
	SubmitTime    Time         // Simulated time of arrival into the book
	Status        OrderStatus  //
}

func (o Order) String() string {
	return fmt.Sprintf("%s %s %s %d/%d@%d owner=%s status=%s",
		o.Instrument, o.Side, o.OrderType, o.Quantity, o.TotalQuantity,
		o.Price, o.Owner, o.Status)
}

// Fill decrements the remaining quantity and moves the status along the
// fill lifecycle.
func (o *Order) Fill(qty int64) {
	o.Quantity -= qty
	if o.Quantity == 0 {
		o.Status = Filled
	} else {
		o.Status = PartiallyFilled
	}
}
