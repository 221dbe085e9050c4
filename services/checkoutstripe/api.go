package checkoutstripe

import "context"

//go:generate mockgen -source=api.go -package checkoutstripe -destination recorder_mock.go PaymentRecorder
type PaymentRecorder interface {
	RecordPayment(c context.Context, shopSessionID string, paymentSessionID string, paymentID string) error
}
