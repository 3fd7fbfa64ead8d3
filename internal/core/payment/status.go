// Package payment contains the pure rules of the payment flow.
package payment

import (
	"fmt"
	"math"
	"strings"
)

// Internal payment statuses recorded against a payment.
const (
	InternalPending    = "pending"
	InternalProcessing = "processing"
	InternalPaid       = "paid"
	InternalFailed     = "failed"
)

// StatusMapping pairs the gateway-facing payment status with the internal status.
type StatusMapping struct {
	PaymentStatus  string
	InternalStatus string
}

var intentStatusTable = map[string]StatusMapping{
	"requires_payment_method": {PaymentStatus: "requires_payment_method", InternalStatus: InternalPending},
	"requires_confirmation":   {PaymentStatus: "requires_confirmation", InternalStatus: InternalPending},
	"requires_action":         {PaymentStatus: "requires_action", InternalStatus: InternalPending},
	"processing":              {PaymentStatus: "processing", InternalStatus: InternalProcessing},
	"requires_capture":        {PaymentStatus: "requires_capture", InternalStatus: InternalProcessing},
	"canceled":                {PaymentStatus: "canceled", InternalStatus: InternalFailed},
	"succeeded":               {PaymentStatus: "succeeded", InternalStatus: InternalPaid},
}

// MapStatus maps a PaymentIntent status to payment and internal statuses.
// Unknown statuses keep their name and are treated as pending.
func MapStatus(intentStatus string) StatusMapping {
	if m, ok := intentStatusTable[intentStatus]; ok {
		return m
	}
	return StatusMapping{PaymentStatus: intentStatus, InternalStatus: InternalPending}
}

// EventPaymentFailed is the gateway event for a declined attempt. The intent
// itself returns to requires_payment_method, so the event type decides.
const EventPaymentFailed = "payment_intent.payment_failed"

// MapEvent maps a webhook event for an intent to payment and internal statuses.
func MapEvent(eventType, intentStatus string) StatusMapping {
	if eventType == EventPaymentFailed {
		return StatusMapping{PaymentStatus: "payment_failed", InternalStatus: InternalFailed}
	}
	return MapStatus(intentStatus)
}

// Regresses reports whether moving a payment from current to next would
// undo progress already recorded. Paid is final, and a late pending
// notification cannot override processing. A failed attempt may be followed
// by anything because the customer can retry on the same intent.
func Regresses(current, next string) bool {
	switch current {
	case InternalPaid:
		return next != InternalPaid
	case InternalProcessing:
		return next == InternalPending
	default:
		return false
	}
}

// ToMinorUnits converts a decimal amount (e.g. pounds) to minor units (pence).
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FormatMinorUnits renders minor units as a decimal string, e.g. 12345 -> "123.45".
func FormatMinorUnits(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// NormalizeCurrency lower-cases an ISO currency code, defaulting when empty.
func NormalizeCurrency(currency, fallback string) string {
	c := strings.ToLower(strings.TrimSpace(currency))
	if c == "" {
		return strings.ToLower(fallback)
	}
	return c
}
