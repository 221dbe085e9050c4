package basket

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/MarcGrol/basketbridge/lib/myerrors"
	"github.com/MarcGrol/basketbridge/lib/mylog"
	"github.com/MarcGrol/basketbridge/services/basket/basketevents"
	"github.com/MarcGrol/basketbridge/services/catalog"
	"github.com/MarcGrol/basketbridge/services/contact"
	"github.com/MarcGrol/basketbridge/services/order"
)

const (
	paymentStateInit = "init"
	paymentStateDone = "done"
)

type addItemCommand struct {
	SessionID   string
	ArticleUID  string
	ArticleType string
	Amount      float64
	CustomPrice float64
	Comment     string
	RefUID      string
	RefType     string
}

type contactDetails struct {
	Email         string
	FirstName     string
	LastName      string
	Phone         string
	SalutationUID string
	Street        string
	Zip           string
	City          string
}

type selectPaymentCommand struct {
	SessionID         string
	Contact           *contactDetails
	DeliveryMethodUID string
	Comment           string
}

type stripeCommand struct {
	SessionID        string
	PaymentSessionID string
	PaymentID        string
	State            string
}

// findOrCreateBasket returns the open basket of the session and creates one when there is none.
func (s *service) findOrCreateBasket(c context.Context, sessionID string) (Basket, error) {
	basket, found, err := s.baskets.findOpen(c, sessionID)
	if err != nil {
		return Basket{}, err
	}
	if found {
		return basket, nil
	}

	newStateUID, found, err := s.resolveState(c, catalog.FormBasket, catalog.StateNew)
	if err != nil {
		return Basket{}, err
	}
	if !found {
		return Basket{}, catalogIncomplete("no state 'new' for baskets")
	}

	now := s.nower.Now()
	basket = Basket{
		UID:           s.uuider.Create(),
		ShopSessionID: sessionID,
		StateUID:      newStateUID,
		Label:         defaultLabel,
		Comment:       defaultComment,
		CreatedBy:     bridgeUser,
		CreatedAt:     now,
		ModifiedBy:    bridgeUser,
		ModifiedAt:    now,
	}
	// returned as built: a transactional read does not observe this write before commit
	err = s.baskets.put(c, basket)
	if err != nil {
		return Basket{}, err
	}

	err = s.publisher.Publish(c, basketevents.TopicName, basketevents.BasketCreated{
		BasketUID:     basket.UID,
		ShopSessionID: sessionID,
	})
	if err != nil {
		return Basket{}, myerrors.NewInternalError(fmt.Errorf("error publishing creation of basket %s: %w", basket.UID, err))
	}

	s.logger.Log(c, sessionID, mylog.SeverityInfo, "Created basket %s", basket.UID)

	return basket, nil
}

// addItem merges the item into a matching position without comment, or adds a new position.
func (s *service) addItem(c context.Context, cmd addItemCommand) (Response, error) {
	s.logger.Log(c, cmd.SessionID, mylog.SeverityInfo, "Add %s x %s %s", formatAmount(cmd.Amount), cmd.ArticleType, cmd.ArticleUID)

	var resp Response
	err := s.mutate(c, cmd.SessionID, func(c context.Context) error {
		basket, err := s.findOrCreateBasket(c, cmd.SessionID)
		if err != nil {
			return err
		}
		now := s.nower.Now()

		if cmd.Comment == "" {
			position, found, err := s.positions.findMergeable(c, basket.UID, cmd.ArticleUID, cmd.RefUID, cmd.RefType)
			if err != nil {
				return err
			}
			if found {
				position.Amount = decimal.NewFromFloat(position.Amount).Add(decimal.NewFromFloat(cmd.Amount)).InexactFloat64()
				position.ModifiedBy = bridgeUser
				position.ModifiedAt = now
				err = s.positions.put(c, position)
				if err != nil {
					return err
				}
				err = s.steps.append(c, &basket, StepUpdateAmount,
					fmt.Sprintf("%s %s: +%s", position.ArticleType, position.ArticleUID, formatAmount(cmd.Amount)))
				if err != nil {
					return err
				}
				resp = addedResponse(cmd.Amount, basket, position)
				return nil
			}
		}

		price := cmd.CustomPrice
		if price == 0 {
			price = s.catalogPrice(c, cmd.SessionID, cmd.ArticleType, cmd.ArticleUID)
		}

		sortID, err := s.positions.nextSortID(c, basket.UID)
		if err != nil {
			return err
		}
		position := Position{
			UID:         s.uuider.Create(),
			BasketUID:   basket.UID,
			ArticleUID:  cmd.ArticleUID,
			ArticleType: cmd.ArticleType,
			RefUID:      cmd.RefUID,
			RefType:     cmd.RefType,
			Amount:      cmd.Amount,
			Price:       price,
			Comment:     cmd.Comment,
			SortID:      sortID,
			CreatedBy:   bridgeUser,
			CreatedAt:   now,
			ModifiedBy:  bridgeUser,
			ModifiedAt:  now,
		}
		err = s.positions.put(c, position)
		if err != nil {
			return err
		}
		err = s.steps.append(c, &basket, StepAddItem,
			fmt.Sprintf("%s %s: %s", position.ArticleType, position.ArticleUID, formatAmount(cmd.Amount)))
		if err != nil {
			return err
		}
		resp = addedResponse(cmd.Amount, basket, position)
		return nil
	})
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

func addedResponse(amount float64, basket Basket, position Position) Response {
	resp := success(formatAmount(amount) + " items added to basket")
	resp.Basket = &basket
	resp.Position = &position
	return resp
}

// getBasket is a read: a session without an open basket simply has an empty basket.
func (s *service) getBasket(c context.Context, sessionID string) (Response, error) {
	basket, found, err := s.baskets.findOpen(c, sessionID)
	if err != nil {
		return Response{}, err
	}
	if !found {
		return success("Your Basket is empty"), nil
	}

	items, totals, err := s.loadEnrichedPositions(c, basket)
	if err != nil {
		return Response{}, err
	}

	resp := success("open basket found")
	resp.Basket = &basket
	resp.Items = items
	resp.Totals = &totals
	return resp, nil
}

func (s *service) checkout(c context.Context, sessionID string) (Response, error) {
	s.logger.Log(c, sessionID, mylog.SeverityInfo, "Checkout")

	deliveryMethods, err := s.options(c, catalog.FormBasket, catalog.KeyDeliveryMethod)
	if err != nil {
		return Response{}, err
	}
	salutations, err := s.options(c, catalog.FormContact, catalog.KeySalutation)
	if err != nil {
		return Response{}, err
	}

	var resp Response
	err = s.mutate(c, sessionID, func(c context.Context) error {
		basket, err := s.requireOpenBasket(c, sessionID)
		if err != nil {
			return err
		}

		resp = success("checkout started")
		if basket.ContactUID == "" {
			err = s.steps.append(c, &basket, StepCheckoutInit, "")
		} else {
			person, found, lookupErr := s.contacts.GetWithAddress(c, basket.ContactUID)
			if lookupErr != nil {
				return myerrors.NewInternalError(fmt.Errorf("error fetching contact %s: %w", basket.ContactUID, lookupErr))
			}
			if found {
				resp = success("checkout started again")
				resp.Contact = &person
				err = s.steps.append(c, &basket, StepCheckoutRepeat, "")
			} else {
				s.logger.Log(c, sessionID, mylog.SeverityWarn, "Basket %s refers to missing contact %s", basket.UID, basket.ContactUID)
				err = s.steps.append(c, &basket, StepCheckoutInitRepeat, "contact "+basket.ContactUID+" not found")
			}
		}
		if err != nil {
			return err
		}

		resp.Basket = &basket
		resp.DeliveryMethods = deliveryMethods
		resp.Salutations = salutations
		return nil
	})
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

func (s *service) selectPayment(c context.Context, cmd selectPaymentCommand) (Response, error) {
	s.logger.Log(c, cmd.SessionID, mylog.SeverityInfo, "Select payment")

	var resp Response
	err := s.mutate(c, cmd.SessionID, func(c context.Context) error {
		basket, err := s.requireOpenBasket(c, cmd.SessionID)
		if err != nil {
			return err
		}
		resp = success("contact saved")

		if cmd.Contact != nil {
			err = s.steps.append(c, &basket, StepPaymentInit, "")
			if err != nil {
				return err
			}
			person, err := s.upsertContact(c, *cmd.Contact)
			if err != nil {
				return err
			}
			basket.ContactUID = person.UID
			resp.Contact = &person
		} else {
			err = s.attachContact(c, basket, &resp)
			if err != nil {
				return err
			}
		}

		if cmd.DeliveryMethodUID != "" {
			deliveryMethods, err := s.options(c, catalog.FormBasket, catalog.KeyDeliveryMethod)
			if err != nil {
				return err
			}
			deliveryMethod, found := findOption(deliveryMethods, cmd.DeliveryMethodUID)
			if !found {
				return ErrUnknownDeliveryMethod
			}
			basket.DeliveryMethodUID = deliveryMethod.ID
			resp.DeliveryMethod = &deliveryMethod
		}

		if cmd.Comment != "" {
			basket.Comment = cmd.Comment
		}

		paymentMethods, err := s.options(c, catalog.FormBasket, catalog.KeyPaymentMethod)
		if err != nil {
			return err
		}
		selected, err := s.selectedOption(c, basket.PaymentMethodUID)
		if err != nil {
			return err
		}
		if basket.PaymentMethodUID != "" {
			err = s.steps.append(c, &basket, StepPaymentRepeat, selected.Label)
			if err != nil {
				return err
			}
		}

		err = s.baskets.put(c, basket)
		if err != nil {
			return err
		}

		resp.Basket = &basket
		resp.PaymentMethods = paymentMethods
		resp.PaymentMethodSelected = &selected
		return nil
	})
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

// upsertContact returns the contact with the given email, creating it with its address when new.
// A created contact is returned as built, it is not read back within the transaction.
func (s *service) upsertContact(c context.Context, details contactDetails) (contact.WithAddress, error) {
	existing, found, err := s.contacts.FindByEmail(c, details.Email)
	if err != nil {
		return contact.WithAddress{}, myerrors.NewInternalError(fmt.Errorf("error searching contact: %w", err))
	}
	if found {
		person, found, err := s.contacts.GetWithAddress(c, existing.UID)
		if err != nil {
			return contact.WithAddress{}, myerrors.NewInternalError(fmt.Errorf("error fetching contact %s: %w", existing.UID, err))
		}
		if !found {
			return contact.WithAddress{Contact: existing}, nil
		}
		return person, nil
	}

	created, address, err := s.contacts.Create(c,
		contact.Contact{
			Email:         details.Email,
			FirstName:     details.FirstName,
			LastName:      details.LastName,
			Phone:         details.Phone,
			SalutationUID: details.SalutationUID,
		},
		contact.Address{
			Street: details.Street,
			Zip:    details.Zip,
			City:   details.City,
		})
	if err != nil {
		return contact.WithAddress{}, myerrors.NewInternalError(fmt.Errorf("error creating contact: %w", err))
	}
	return contact.WithAddress{Contact: created, Address: &address}, nil
}

func (s *service) confirm(c context.Context, sessionID string, paymentMethodUID string) (Response, error) {
	s.logger.Log(c, sessionID, mylog.SeverityInfo, "Confirm with payment method '%s'", paymentMethodUID)

	var resp Response
	err := s.mutate(c, sessionID, func(c context.Context) error {
		basket, err := s.requireOpenBasket(c, sessionID)
		if err != nil {
			return err
		}
		resp = success("paymentmethod saved")

		err = s.attachContact(c, basket, &resp)
		if err != nil {
			return err
		}

		if paymentMethodUID != "" {
			paymentMethods, err := s.options(c, catalog.FormBasket, catalog.KeyPaymentMethod)
			if err != nil {
				return err
			}
			if _, found := findOption(paymentMethods, paymentMethodUID); !found {
				return ErrUnknownPaymentMethod
			}
			basket.PaymentMethodUID = paymentMethodUID
		}

		paymentMethod, err := s.selectedOption(c, basket.PaymentMethodUID)
		if err != nil {
			return err
		}
		deliveryMethod, err := s.selectedOption(c, basket.DeliveryMethodUID)
		if err != nil {
			return err
		}

		positions, totals, err := s.loadEnrichedPositions(c, basket)
		if err != nil {
			return err
		}

		err = s.steps.append(c, &basket, StepConfirmOrder,
			fmt.Sprintf("payment: %s, delivery: %s, positions: %d", paymentMethod.Label, deliveryMethod.Label, len(positions)))
		if err != nil {
			return err
		}

		resp.Basket = &basket
		resp.PaymentMethod = &paymentMethod
		resp.DeliveryMethod = &deliveryMethod
		resp.Positions = positions
		resp.Totals = &totals
		return nil
	})
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

func (s *service) attachContact(c context.Context, basket Basket, resp *Response) error {
	if basket.ContactUID == "" {
		return nil
	}
	person, found, err := s.contacts.GetWithAddress(c, basket.ContactUID)
	if err != nil {
		return myerrors.NewInternalError(fmt.Errorf("error fetching contact %s: %w", basket.ContactUID, err))
	}
	if found {
		resp.Contact = &person
	}
	return nil
}

// initPayment starts payment and closes the basket right away for gateways that settle without redirect.
func (s *service) initPayment(c context.Context, sessionID string) (Response, error) {
	s.logger.Log(c, sessionID, mylog.SeverityInfo, "Init payment")

	var resp Response
	var created *order.Order
	err := s.mutate(c, sessionID, func(c context.Context) error {
		created = nil
		basket, err := s.requireOpenBasket(c, sessionID)
		if err != nil {
			return err
		}
		resp = success("payment started")

		err = s.attachContact(c, basket, &resp)
		if err != nil {
			return err
		}

		paymentMethod, err := s.selectedOption(c, basket.PaymentMethodUID)
		if err != nil {
			return err
		}

		err = s.steps.append(c, &basket, StepPaymentStart, paymentMethod.Gateway)
		if err != nil {
			return err
		}

		if settlesImmediately(paymentMethod.Gateway) {
			basket.PaymentGateway = paymentMethod.Gateway
			err = s.steps.append(c, &basket, StepBasketClose, paymentMethod.Gateway)
			if err != nil {
				return err
			}
			job, lines, err := s.closeBasketAndCreateOrder(c, &basket, nil)
			if err != nil {
				return err
			}
			resp.Message = "order created"
			resp.Order = &job
			resp.OrderLines = lines
			created = &job
		}

		resp.Basket = &basket
		resp.PaymentMethod = &paymentMethod
		return nil
	})
	if err != nil {
		return Response{}, err
	}
	if created != nil {
		s.metrics.ObserveOrder(resp.Basket.PaymentGateway, created.TotalPrice)
	}
	return resp, nil
}

func settlesImmediately(gateway string) bool {
	return gateway == catalog.GatewayPrepay || gateway == catalog.GatewayInstore
}

func (s *service) removePosition(c context.Context, sessionID string, positionUID string) (Response, error) {
	s.logger.Log(c, sessionID, mylog.SeverityInfo, "Remove position %s", positionUID)

	var resp Response
	err := s.mutate(c, sessionID, func(c context.Context) error {
		basket, err := s.requireOpenBasket(c, sessionID)
		if err != nil {
			return err
		}
		position, err := s.positions.getOwned(c, basket.UID, positionUID)
		if err != nil {
			return err
		}
		err = s.positions.delete(c, position.UID)
		if err != nil {
			return err
		}
		err = s.steps.append(c, &basket, StepItemRemove,
			fmt.Sprintf("%s %s: %s", position.ArticleType, position.ArticleUID, formatAmount(position.Amount)))
		if err != nil {
			return err
		}

		resp, err = s.refreshedPositions(c, basket, "position removed", positionWrite{position: position, deleted: true})
		return err
	})
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

func (s *service) updatePosition(c context.Context, sessionID string, positionUID string, amount float64) (Response, error) {
	s.logger.Log(c, sessionID, mylog.SeverityInfo, "Update position %s to %s", positionUID, formatAmount(amount))

	var resp Response
	err := s.mutate(c, sessionID, func(c context.Context) error {
		basket, err := s.requireOpenBasket(c, sessionID)
		if err != nil {
			return err
		}
		position, err := s.positions.getOwned(c, basket.UID, positionUID)
		if err != nil {
			return err
		}
		previous := position.Amount
		position.Amount = amount
		position.ModifiedBy = bridgeUser
		position.ModifiedAt = s.nower.Now()
		err = s.positions.put(c, position)
		if err != nil {
			return err
		}
		err = s.steps.append(c, &basket, StepItemUpdate,
			fmt.Sprintf("%s %s: %s -> %s", position.ArticleType, position.ArticleUID, formatAmount(previous), formatAmount(amount)))
		if err != nil {
			return err
		}

		resp, err = s.refreshedPositions(c, basket, "position updated", positionWrite{position: position})
		return err
	})
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

// refreshedPositions answers with the positions of the basket including a write made earlier in
// the same transaction, which the position query may not reflect yet.
func (s *service) refreshedPositions(c context.Context, basket Basket, message string, written positionWrite) (Response, error) {
	listed, err := s.positions.listByBasket(c, basket.UID)
	if err != nil {
		return Response{}, err
	}
	positions, totals := s.enrichPositions(c, basket.ShopSessionID, written.applyTo(listed))
	resp := success(message)
	resp.Basket = &basket
	resp.Positions = positions
	resp.Totals = &totals
	return resp, nil
}

// stripe records the hand-off to and the completion of a Stripe checkout session.
func (s *service) stripe(c context.Context, cmd stripeCommand) (Response, error) {
	s.logger.Log(c, cmd.SessionID, mylog.SeverityInfo, "Stripe %s for payment session %s", cmd.State, cmd.PaymentSessionID)

	var resp Response
	var created *order.Order
	err := s.mutate(c, cmd.SessionID, func(c context.Context) error {
		created = nil
		basket, err := s.requireOpenBasket(c, cmd.SessionID)
		if err != nil {
			return err
		}
		now := s.nower.Now()

		switch cmd.State {
		case paymentStateInit:
			basket.PaymentGateway = catalog.GatewayStripe
			basket.PaymentID = cmd.PaymentID
			basket.PaymentSessionID = cmd.PaymentSessionID
			basket.PaymentStarted = &now
			err = s.steps.append(c, &basket, StepStripeInit, cmd.PaymentSessionID)
			if err != nil {
				return err
			}
			resp = success("payment session registered")

		case paymentStateDone:
			if basket.PaymentSessionID == "" || basket.PaymentSessionID != cmd.PaymentSessionID {
				s.logger.Log(c, cmd.SessionID, mylog.SeverityWarn, "Payment session %s does not match basket %s", cmd.PaymentSessionID, basket.UID)
				return ErrPaymentSessionMismatch
			}
			if cmd.PaymentID != "" {
				basket.PaymentID = cmd.PaymentID
			}
			basket.PaymentReceived = &now
			err = s.steps.append(c, &basket, StepBasketClose, catalog.GatewayStripe)
			if err != nil {
				return err
			}
			job, lines, err := s.closeBasketAndCreateOrder(c, &basket, &now)
			if err != nil {
				return err
			}
			resp = success("payment received")
			resp.Order = &job
			resp.OrderLines = lines
			created = &job

		default:
			return myerrors.NewInvalidInputErrorf("unsupported payment state '%s'", cmd.State)
		}

		resp.Basket = &basket
		return nil
	})
	if err != nil {
		return Response{}, err
	}
	if created != nil {
		s.metrics.ObserveOrder(catalog.GatewayStripe, created.TotalPrice)
	}
	return resp, nil
}

func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}
