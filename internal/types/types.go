package types

import "time"

// TransactionStatus is the outcome a processor reports for a transaction.
type TransactionStatus string

const (
	StatusApproved TransactionStatus = "approved"
	StatusDeclined TransactionStatus = "declined"
)

type TransactionRequest struct {
	Amount         float64 `json:"amount" validate:"required,gt=0"`
	Currency       string  `json:"currency" validate:"required,oneof=COP PEN CLP"`
	Description    string  `json:"description"`
	IdempotencyKey string  `json:"idempotency_key"`
	RequestID      string  `json:"request_id"`
}

// TransactionResult is immutable once built; idempotent replays return the
// original value unchanged.
type TransactionResult struct {
	TransactionID string            `json:"transaction_id"`
	Amount        float64           `json:"amount"`
	Currency      string            `json:"currency"`
	Status        TransactionStatus `json:"status"`
	ProcessorID   string            `json:"processor_id"`
	ProcessorName string            `json:"processor_name"`
	FeePercent    float64           `json:"fee_percent"`
	Message       string            `json:"message"`
	Timestamp     time.Time         `json:"timestamp"`
	RequestID     *string           `json:"request_id"`
}

type ProcessorHealth struct {
	ProcessorID      string  `json:"processor_id"`
	ProcessorName    string  `json:"processor_name"`
	SuccessRate      float64 `json:"success_rate"`
	Status           string  `json:"status"`
	TotalAttempts    int     `json:"total_attempts"`
	TotalSuccesses   int     `json:"total_successes"`
	FeePercent       float64 `json:"fee_percent"`
	IsRoutingEnabled bool    `json:"is_routing_enabled"`
}

type HealthReport struct {
	Processors      []ProcessorHealth `json:"processors"`
	HealthThreshold float64           `json:"health_threshold"`
}

type SimulationResponse struct {
	Message     string  `json:"message"`
	ProcessorID string  `json:"processor_id"`
	SuccessRate float64 `json:"success_rate"`
}
