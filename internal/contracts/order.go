package contracts

import "time"

// OrderSide represents buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusExecuted  OrderStatus = "EXECUTED"
	OrderStatusFailed    OrderStatus = "FAILED"
	OrderStatusSkipped   OrderStatus = "SKIPPED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Order represents one sizing decision made during a rebalance. Executed
// orders produce a Transaction; failed and skipped orders carry the reason
// for reporting.
type Order struct {
	ID        string      `json:"id"`
	Date      time.Time   `json:"date"`
	Symbol    string      `json:"symbol"`
	Side      OrderSide   `json:"side"`
	Quantity  float64     `json:"quantity"` // unsigned share count
	Price     float64     `json:"price"`    // quoted price at sizing time
	Status    OrderStatus `json:"status"`
	Reason    string      `json:"reason,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// IsExecuted reports whether the order resulted in a trade.
func (o *Order) IsExecuted() bool {
	return o.Status == OrderStatusExecuted
}

// Transaction is the immutable record of one executed trade. Appended to an
// ordered history by the execution simulator; never mutated or deleted.
type Transaction struct {
	Date       time.Time `json:"date"`
	Symbol     string    `json:"symbol"`
	Action     OrderSide `json:"action"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"` // execution price after slippage and impact
	GrossValue float64   `json:"gross_value"`
	Cost       float64   `json:"transaction_cost"`
	TotalCost  float64   `json:"total_cost"` // cash delta magnitude for the trade
}

// RebalanceReport summarizes the outcome of one execution pass: what traded,
// what was rejected, and what was skipped as immaterial.
type RebalanceReport struct {
	Date     time.Time     `json:"date"`
	Executed []Transaction `json:"executed"`
	Failed   []Order       `json:"failed,omitempty"`
	Skipped  []string      `json:"skipped,omitempty"`
}

// TradeCount returns the number of executed trades in the report.
func (r *RebalanceReport) TradeCount() int {
	return len(r.Executed)
}

// TotalCosts returns the sum of transaction costs paid in this pass.
func (r *RebalanceReport) TotalCosts() float64 {
	var sum float64
	for _, t := range r.Executed {
		sum += t.Cost
	}
	return sum
}
