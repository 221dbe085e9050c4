package basket

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/MarcGrol/basketbridge/lib/mycontext"
	"github.com/MarcGrol/basketbridge/lib/myhttp"
	"github.com/MarcGrol/basketbridge/lib/mylog"
)

type webService struct {
	logger  mylog.Logger
	service *service
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewWebService(deps Dependencies) (*webService, error) {
	logger := mylog.New("basket")
	s, err := newService(deps, logger)
	if err != nil {
		return nil, err
	}
	return &webService{
		logger:  logger,
		service: s,
	}, nil
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	subRouter := router.PathPrefix("/basket").Subrouter()
	subRouter.HandleFunc("/add", s.addPage()).Methods("GET", "POST")
	subRouter.HandleFunc("/get", s.getPage()).Methods("GET", "POST")
	subRouter.HandleFunc("/checkout", s.checkoutPage()).Methods("GET", "POST")
	subRouter.HandleFunc("/payment", s.paymentPage()).Methods("GET", "POST")
	subRouter.HandleFunc("/confirm", s.confirmPage()).Methods("GET", "POST")
	subRouter.HandleFunc("/initpayment", s.initPaymentPage()).Methods("GET", "POST")
	subRouter.HandleFunc("/remove", s.removePage()).Methods("GET", "POST")
	subRouter.HandleFunc("/update", s.updatePage()).Methods("GET", "POST")
	subRouter.HandleFunc("/stripe", s.stripePage()).Methods("GET", "POST")

	return nil
}

// RecordPayment closes the basket of a session for a completed Stripe checkout session.
func (s *webService) RecordPayment(c context.Context, shopSessionID string, paymentSessionID string, paymentID string) error {
	_, err := s.service.stripe(c, stripeCommand{
		SessionID:        shopSessionID,
		PaymentSessionID: paymentSessionID,
		PaymentID:        paymentID,
		State:            paymentStateDone,
	})
	return err
}

type sessionRequest struct {
	SessionID string `form:"shop_session_id" validate:"required"`
}

type addRequest struct {
	SessionID string  `form:"shop_session_id" validate:"required"`
	ItemID    string  `form:"shop_item_id" validate:"required"`
	ItemType  string  `form:"shop_item_type" validate:"required"`
	Amount    float64 `form:"shop_item_amount" validate:"gte=0"`
	Price     float64 `form:"shop_item_price" validate:"gte=0"`
	Comment   string  `form:"shop_item_comment"`
	RefID     string  `form:"shop_item_ref_idfs"`
	RefType   string  `form:"shop_item_ref_type"`
}

type paymentRequest struct {
	SessionID      string `form:"shop_session_id" validate:"required"`
	Email          string `form:"email" validate:"omitempty,email"`
	FirstName      string `form:"firstname"`
	LastName       string `form:"lastname"`
	Phone          string `form:"phone"`
	Salutation     string `form:"salutation"`
	Street         string `form:"street"`
	Zip            string `form:"zip"`
	City           string `form:"city"`
	DeliveryMethod string `form:"deliverymethod"`
	Comment        string `form:"comment"`
}

func (r paymentRequest) command() selectPaymentCommand {
	cmd := selectPaymentCommand{
		SessionID:         r.SessionID,
		DeliveryMethodUID: r.DeliveryMethod,
		Comment:           r.Comment,
	}
	if r.Email != "" {
		cmd.Contact = &contactDetails{
			Email:         r.Email,
			FirstName:     r.FirstName,
			LastName:      r.LastName,
			Phone:         r.Phone,
			SalutationUID: r.Salutation,
			Street:        r.Street,
			Zip:           r.Zip,
			City:          r.City,
		}
	}
	return cmd
}

type confirmRequest struct {
	SessionID     string `form:"shop_session_id" validate:"required"`
	PaymentMethod string `form:"paymentmethod"`
}

type positionRequest struct {
	SessionID  string  `form:"shop_session_id" validate:"required"`
	PositionID string  `form:"position_id" validate:"required"`
	Amount     float64 `form:"position_amount" validate:"gte=0"`
}

type stripeRequest struct {
	SessionID        string `form:"shop_session_id" validate:"required"`
	PaymentSessionID string `form:"payment_session_id" validate:"required"`
	PaymentID        string `form:"payment_id"`
	PaymentState     string `form:"payment_state" validate:"required,oneof=init done"`
}

func (s *webService) addPage() http.HandlerFunc {
	return s.handle("add", func(c context.Context, r *http.Request) (Response, error) {
		req := addRequest{}
		err := myhttp.DecodeForm(r, &req)
		if err != nil {
			return Response{}, err
		}
		return s.service.addItem(c, addItemCommand{
			SessionID:   req.SessionID,
			ArticleUID:  req.ItemID,
			ArticleType: req.ItemType,
			Amount:      req.Amount,
			CustomPrice: req.Price,
			Comment:     req.Comment,
			RefUID:      req.RefID,
			RefType:     req.RefType,
		})
	})
}

func (s *webService) getPage() http.HandlerFunc {
	return s.handle("get", func(c context.Context, r *http.Request) (Response, error) {
		req := sessionRequest{}
		err := myhttp.DecodeForm(r, &req)
		if err != nil {
			return Response{}, err
		}
		return s.service.getBasket(c, req.SessionID)
	})
}

func (s *webService) checkoutPage() http.HandlerFunc {
	return s.handle("checkout", func(c context.Context, r *http.Request) (Response, error) {
		req := sessionRequest{}
		err := myhttp.DecodeForm(r, &req)
		if err != nil {
			return Response{}, err
		}
		return s.service.checkout(c, req.SessionID)
	})
}

func (s *webService) paymentPage() http.HandlerFunc {
	return s.handle("payment", func(c context.Context, r *http.Request) (Response, error) {
		req := paymentRequest{}
		err := myhttp.DecodeForm(r, &req)
		if err != nil {
			return Response{}, err
		}
		return s.service.selectPayment(c, req.command())
	})
}

func (s *webService) confirmPage() http.HandlerFunc {
	return s.handle("confirm", func(c context.Context, r *http.Request) (Response, error) {
		req := confirmRequest{}
		err := myhttp.DecodeForm(r, &req)
		if err != nil {
			return Response{}, err
		}
		return s.service.confirm(c, req.SessionID, req.PaymentMethod)
	})
}

func (s *webService) initPaymentPage() http.HandlerFunc {
	return s.handle("initpayment", func(c context.Context, r *http.Request) (Response, error) {
		req := sessionRequest{}
		err := myhttp.DecodeForm(r, &req)
		if err != nil {
			return Response{}, err
		}
		return s.service.initPayment(c, req.SessionID)
	})
}

func (s *webService) removePage() http.HandlerFunc {
	return s.handle("remove", func(c context.Context, r *http.Request) (Response, error) {
		req := positionRequest{}
		err := myhttp.DecodeForm(r, &req)
		if err != nil {
			return Response{}, err
		}
		return s.service.removePosition(c, req.SessionID, req.PositionID)
	})
}

func (s *webService) updatePage() http.HandlerFunc {
	return s.handle("update", func(c context.Context, r *http.Request) (Response, error) {
		req := positionRequest{}
		err := myhttp.DecodeForm(r, &req)
		if err != nil {
			return Response{}, err
		}
		return s.service.updatePosition(c, req.SessionID, req.PositionID, req.Amount)
	})
}

func (s *webService) stripePage() http.HandlerFunc {
	return s.handle("stripe", func(c context.Context, r *http.Request) (Response, error) {
		req := stripeRequest{}
		err := myhttp.DecodeForm(r, &req)
		if err != nil {
			return Response{}, err
		}
		return s.service.stripe(c, stripeCommand{
			SessionID:        req.SessionID,
			PaymentSessionID: req.PaymentSessionID,
			PaymentID:        req.PaymentID,
			State:            req.PaymentState,
		})
	})
}

// handle answers expected failures with state "error" and status 200, like every other basket
// response. Other errors carry their http status.
func (s *webService) handle(operation string, f func(c context.Context, r *http.Request) (Response, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		writer := myhttp.NewWriter(s.logger)

		resp, err := f(c, r)
		if err != nil {
			if _, ok := AsFailure(err); ok {
				s.logger.Log(c, "", mylog.SeverityInfo, "Basket %s failed: %s", operation, err)
				writer.Write(c, w, http.StatusOK, Response{
					State:   stateError,
					Message: err.Error(),
				})
				return
			}
			s.service.metrics.IncFailure(operation)
			writer.WriteError(c, w, 1, err)
			return
		}

		writer.Write(c, w, http.StatusOK, resp)
	}
}
