package models

import "time"

// PaymentReceipt records one successful payment confirmation reported by the
// external payment widget. The receipt is written before the post's paid-user
// set is updated, so an interrupted grant can be reconciled later.
type PaymentReceipt struct {
	ID        string
	PostID    string
	ViewerID  string
	Amount    int64 // smallest currency unit, as reported by the widget
	Currency  string
	CreatedAt time.Time
}
