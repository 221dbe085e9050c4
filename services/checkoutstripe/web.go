package checkoutstripe

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/MarcGrol/basketbridge/lib/mycontext"
	"github.com/MarcGrol/basketbridge/lib/myerrors"
	"github.com/MarcGrol/basketbridge/lib/myhttp"
	"github.com/MarcGrol/basketbridge/lib/mylog"
)

const maxPayloadBytes = int64(65536)

type webService struct {
	logger  mylog.Logger
	service *service
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewWebService(webhookSecret string, recorder PaymentRecorder) (*webService, error) {
	logger := mylog.New("checkoutstripe")
	s, err := newService(webhookSecret, logger, recorder)
	if err != nil {
		return nil, err
	}

	return &webService{
		logger:  logger,
		service: s,
	}, nil
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	router.HandleFunc("/basket/stripe/webhook", s.webhookNotification()).Methods("POST")

	return nil
}

func (s *webService) webhookNotification() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
		if err != nil {
			errorWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(fmt.Errorf("error reading body: %s", err)))
			return
		}

		signature := r.Header.Get("Stripe-Signature")
		if signature == "" {
			errorWriter.WriteError(c, w, 2, myerrors.NewAuthenticationError(fmt.Errorf("missing stripe signature")))
			return
		}

		err = s.service.webhookNotification(c, payload, signature)
		if err != nil {
			errorWriter.WriteError(c, w, 3, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{Message: "ok"})
	}
}
