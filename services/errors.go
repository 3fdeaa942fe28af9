package services

import "errors"

// Validation errors: rejected synchronously, no side effects
var (
	ErrMissingUser        = errors.New("user reference is required")
	ErrBelowMinimum       = errors.New("payout amount is below minimum payout threshold")
	ErrInvalidAmount      = errors.New("amount must be greater than zero")
	ErrInsufficientUnpaid = errors.New("insufficient unpaid commissions for this payout amount")
)

// Conflict errors: rejected, no partial writes
var (
	ErrAffiliateExists      = errors.New("affiliate already exists for this user")
	ErrCommissionExists     = errors.New("commission already exists for this order")
	ErrNoEligibleCommission = errors.New("no eligible commissions found for payout")
)

// State errors
var (
	ErrNotFound               = errors.New("not found")
	ErrInactiveAffiliate      = errors.New("affiliate is not active")
	ErrPaymentNotPending      = errors.New("payment is not in pending status")
	ErrInvalidGateway         = errors.New("invalid payment gateway")
	ErrCannotDeleteCompleted  = errors.New("cannot delete completed payment")
	ErrVisitSuppressed        = errors.New("visit suppressed")
	ErrNoAttributionAvailable = errors.New("no attributed affiliate for this conversion")
)
