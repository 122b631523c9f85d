package domain

import "time"

// Alert is the event produced when a scored transaction crosses the
// decision threshold. It is published on the event bus and not persisted
// by the core.
type Alert struct {
	ID          string    `json:"id"`
	TxID        string    `json:"txId"`
	UserID      string    `json:"userId"`
	Probability float64   `json:"probability"`
	Threshold   float64   `json:"threshold"`
	Reasons     []string  `json:"reasons,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// ScoreResult is the outcome of scoring a single transaction.
type ScoreResult struct {
	TxID        string   `json:"txId"`
	Alert       bool     `json:"alert"`
	Probability float64  `json:"probability"`
	Reasons     []string `json:"reasons,omitempty"`
}
