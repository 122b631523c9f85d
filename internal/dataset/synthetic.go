package dataset

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var merchantCategories = []string{
	"groceries", "electronics", "travel", "restaurants",
	"jewelry", "fuel", "pharmacy", "entertainment",
}

// GenerateSynthetic produces a labeled dataset with the given fraud rate
// for tests and benchmarks. Legitimate transactions follow daily spending
// habits; fraudulent ones are rapid bursts of large, out-of-pattern
// amounts at odd hours. Fully deterministic for a fixed seed.
func GenerateSynthetic(n int, fraudRate float64, seed int64) []*domain.Transaction {
	rng := rand.New(rand.NewSource(seed))
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	numUsers := n / 20
	if numUsers < 5 {
		numUsers = 5
	}

	txs := make([]*domain.Transaction, 0, n)
	for i := 0; i < n; i++ {
		user := fmt.Sprintf("user-%03d", rng.Intn(numUsers))

		if rng.Float64() < fraudRate {
			// Burst of activity: minutes apart, large amount, odd hour.
			day := rng.Intn(28)
			at := base.AddDate(0, 0, day).
				Add(time.Duration(2+rng.Intn(3)) * time.Hour).
				Add(time.Duration(rng.Intn(50)) * time.Minute)

			txs = append(txs, &domain.Transaction{
				ID:               fmt.Sprintf("tx-%05d", i),
				UserID:           user,
				Amount:           500 + rng.Float64()*4500,
				MerchantID:       fmt.Sprintf("merchant-f%03d", rng.Intn(200)),
				MerchantCategory: "jewelry",
				Timestamp:        at,
				IsFraud:          true,
				Labeled:          true,
			})
			continue
		}

		day := rng.Intn(28)
		at := base.AddDate(0, 0, day).
			Add(time.Duration(8+rng.Intn(12)) * time.Hour).
			Add(time.Duration(rng.Intn(60)) * time.Minute)

		txs = append(txs, &domain.Transaction{
			ID:               fmt.Sprintf("tx-%05d", i),
			UserID:           user,
			Amount:           5 + rng.Float64()*145,
			MerchantID:       fmt.Sprintf("merchant-%02d", rng.Intn(15)),
			MerchantCategory: merchantCategories[rng.Intn(len(merchantCategories))],
			Timestamp:        at,
			IsFraud:          false,
			Labeled:          true,
		})
	}

	// Guarantee both classes regardless of rate and seed.
	hasFraud, hasLegit := false, false
	for _, tx := range txs {
		if tx.IsFraud {
			hasFraud = true
		} else {
			hasLegit = true
		}
	}
	if !hasFraud && len(txs) > 0 {
		txs[0].IsFraud = true
		txs[0].Amount = 4999
	}
	if !hasLegit && len(txs) > 1 {
		txs[1].IsFraud = false
		txs[1].Amount = 25
	}

	return txs
}
