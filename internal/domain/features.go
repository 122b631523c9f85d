package domain

// FeatureVector holds the derived features for one transaction.
// Values are aligned with the canonical feature name list owned by the
// feature package; names and order must match between training and scoring.
type FeatureVector struct {
	TxID   string
	Values []float64
}
