package payments

import (
	"github.com/shopspring/decimal"

	"github.com/brasilcart/storefront-backend/pkg/config"
	pkgerrors "github.com/brasilcart/storefront-backend/pkg/errors"
)

// InstallmentOption is one way to split a charge. Interest-free options carry
// the original total; interest-bearing ones compound the configured monthly
// rate over the installment count, the total rounded to whole cents and each
// installment rounded up.
type InstallmentOption struct {
	Count            int  `json:"count"`
	InstallmentCents int  `json:"installment_cents"`
	TotalCents       int  `json:"total_cents"`
	InterestFree     bool `json:"interest_free"`
}

var one = decimal.NewFromInt(1)

// InstallmentOptions lists every offerable split for an amount. Counts whose
// per-installment value would fall below the configured floor are dropped,
// except the single-payment option which is always offered.
func InstallmentOptions(amountCents int, cfg config.InstallmentsConfig) []InstallmentOption {
	if amountCents <= 0 {
		return nil
	}
	minCount := cfg.MinCount
	if minCount < 1 {
		minCount = 1
	}
	maxCount := cfg.MaxCount
	if maxCount < minCount {
		maxCount = minCount
	}

	options := make([]InstallmentOption, 0, maxCount-minCount+1)
	for count := minCount; count <= maxCount; count++ {
		option := quote(amountCents, count, cfg)
		if count > 1 && option.InstallmentCents < cfg.MinInstallmentValueCents {
			break
		}
		options = append(options, option)
	}
	return options
}

// QuoteInstallments resolves one specific count, validating it against the
// offerable set.
func QuoteInstallments(amountCents, count int, cfg config.InstallmentsConfig) (InstallmentOption, error) {
	for _, option := range InstallmentOptions(amountCents, cfg) {
		if option.Count == count {
			return option, nil
		}
	}
	return InstallmentOption{}, pkgerrors.New(pkgerrors.CodeValidation, "installment count is not offered for this amount").
		WithDetails(map[string]any{"amount_cents": amountCents, "installments": count})
}

func quote(amountCents, count int, cfg config.InstallmentsConfig) InstallmentOption {
	amount := decimal.NewFromInt(int64(amountCents))
	countDec := decimal.NewFromInt(int64(count))

	if count <= cfg.InterestFreeCount || cfg.MonthlyInterestRate <= 0 {
		installment := amount.Div(countDec).Ceil()
		return InstallmentOption{
			Count:            count,
			InstallmentCents: int(installment.IntPart()),
			TotalCents:       amountCents,
			InterestFree:     true,
		}
	}

	rate := decimal.NewFromFloat(cfg.MonthlyInterestRate)
	factor := one.Add(rate).Pow(countDec)
	// Total is rounded to whole cents first; the per-installment value then
	// rounds up, so count*installment may exceed the total by fractions of
	// a cent. The cardholder is charged the total, not the multiple.
	total := amount.Mul(factor).Round(0)
	installment := total.Div(countDec).Ceil()
	return InstallmentOption{
		Count:            count,
		InstallmentCents: int(installment.IntPart()),
		TotalCents:       int(total.IntPart()),
	}
}
