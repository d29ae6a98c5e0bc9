package models

import "time"

type Payment struct {
	ID            int64     `json:"id" db:"id"`
	ReservationID int64     `json:"reservation_id" db:"reservation_id"`
	GuestName     string    `json:"guest_name,omitempty" db:"guest_name"`
	CabinName     string    `json:"cabin_name,omitempty" db:"cabin_name"`
	Amount        float64   `json:"amount" db:"amount"`
	Method        string    `json:"method" db:"method"`
	Status        string    `json:"status" db:"status"` // signed, completed
	Reference     string    `json:"reference" db:"reference"`
	PaidAt        Date      `json:"paid_at" db:"paid_at"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// PaymentFilter narrows payment listings. Zero fields are ignored; From/To bound paid_at inclusively.
type PaymentFilter struct {
	ReservationID int64
	Method        string
	From          Date
	To            Date
}

// Balance summarises what a reservation owes.
type Balance struct {
	ReservationID int64   `json:"reservation_id"`
	Total         float64 `json:"total"`
	Paid          float64 `json:"paid"`
	Due           float64 `json:"due"`
	Status        string  `json:"status"` // unpaid, signed, completed
}

// NewBalance derives the payment state of a reservation from its total and paid sum.
func NewBalance(reservationID int64, total, paid float64) Balance {
	total = RoundMoney(total)
	paid = RoundMoney(paid)
	b := Balance{
		ReservationID: reservationID,
		Total:         total,
		Paid:          paid,
		Due:           RoundMoney(total - paid),
		Status:        PaymentUnpaid,
	}
	if b.Due < 0 {
		b.Due = 0
	}
	switch {
	case paid > 0 && paid >= total:
		b.Status = PaymentCompleted
	case paid > 0:
		b.Status = PaymentSigned
	}
	return b
}

func IsPaymentMethod(m string) bool {
	switch m {
	case MethodCash, MethodCard, MethodTransfer:
		return true
	}
	return false
}
