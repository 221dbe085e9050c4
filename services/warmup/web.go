package warmup

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/MarcGrol/basketbridge/lib/mycontext"
	"github.com/MarcGrol/basketbridge/lib/myerrors"
	"github.com/MarcGrol/basketbridge/lib/myhttp"
	"github.com/MarcGrol/basketbridge/lib/mylog"
	"github.com/MarcGrol/basketbridge/services/catalog"
)

type StateFinder interface {
	FindEntityTag(c context.Context, form string, tagKey string, value string) (catalog.EntityTag, bool, error)
}

// requiredStates must be configured before baskets can be created and converted.
var requiredStates = []struct {
	form  string
	state string
}{
	{form: catalog.FormBasket, state: catalog.StateNew},
	{form: catalog.FormJob, state: catalog.StateNew},
}

type webService struct {
	logger  mylog.Logger
	catalog StateFinder
}

// Use dependency injection to isolate the infrastructure and ease testing
func NewService(catalog StateFinder) *webService {
	logger := mylog.New("warmup")
	return &webService{
		logger:  logger,
		catalog: catalog,
	}
}

func (s webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	router.HandleFunc("/_ah/warmup", s.warmupPage()).Methods("GET")
	return nil
}

// warmupPage touches the store and refuses traffic while the catalog lacks the states the basket needs.
func (s webService) warmupPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		for _, required := range requiredStates {
			_, found, err := s.catalog.FindEntityTag(c, required.form, catalog.KeyState, required.state)
			if err != nil {
				errorWriter.WriteError(c, w, 1, myerrors.NewInternalError(err))
				return
			}
			if !found {
				errorWriter.WriteError(c, w, 2, myerrors.NewUnavailableError(fmt.Errorf("catalog has no state '%s' for %s", required.state, required.form)))
				return
			}
		}

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{
			Message: "Successfully processed warmup request",
		})
	}
}
