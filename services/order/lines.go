package order

import (
	"github.com/shopspring/decimal"

	"github.com/MarcGrol/basketbridge/lib/myuuid"
)

const (
	surchargeGateway     = "mail"
	SurchargeDescription = "mail shipping surcharge under 100"
)

var (
	SurchargeThreshold = decimal.NewFromInt(100)
	SurchargePrice     = decimal.RequireFromString("2.5")
)

// BuildLines copies the sources into lines with a zero-based sort index and appends the mail
// surcharge when the delivery gateway is mail and the total does not exceed the threshold.
// The returned total includes the surcharge.
func BuildLines(orderUID string, sources []LineSource, deliveryGateway string, uuider myuuid.UUIDer) ([]Line, decimal.Decimal) {
	lines := make([]Line, 0, len(sources)+1)
	total := decimal.Zero

	for idx, src := range sources {
		lines = append(lines, Line{
			UID:          uuider.Create(),
			OrderUID:     orderUID,
			ArticleUID:   src.ArticleUID,
			ArticleType:  src.ArticleType,
			RefUID:       src.RefUID,
			RefType:      src.RefType,
			SortID:       idx,
			Amount:       src.Amount,
			Price:        src.Price,
			Discount:     0,
			DiscountType: DiscountTypePercent,
			Description:  src.Comment,
		})
		total = total.Add(decimal.NewFromFloat(src.Amount).Mul(decimal.NewFromFloat(src.Price)))
	}

	if NeedsSurcharge(total, deliveryGateway) {
		lines = append(lines, Line{
			UID:          uuider.Create(),
			OrderUID:     orderUID,
			ArticleUID:   "",
			ArticleType:  ArticleTypeCustom,
			SortID:       len(sources),
			Amount:       1,
			Price:        SurchargePrice.InexactFloat64(),
			Discount:     0,
			DiscountType: DiscountTypePercent,
			Description:  SurchargeDescription,
		})
		total = total.Add(SurchargePrice)
	}

	return lines, total
}

func NeedsSurcharge(total decimal.Decimal, deliveryGateway string) bool {
	return deliveryGateway == surchargeGateway && total.LessThanOrEqual(SurchargeThreshold)
}
