package myhttp

import (
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/form/v4"
	"github.com/go-playground/validator/v10"

	"github.com/MarcGrol/basketbridge/lib/myerrors"
)

var (
	formDecoder = form.NewDecoder()
	validate    = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// DecodeForm fills dest from the query string and the (urlencoded or multipart) body and
// validates it using the `validate` struct tags.
func DecodeForm(r *http.Request, dest any) error {
	err := r.ParseForm()
	if err != nil {
		return myerrors.NewInvalidInputError(fmt.Errorf("error parsing form: %s", err))
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err = r.ParseMultipartForm(1 << 20)
		if err != nil {
			return myerrors.NewInvalidInputError(fmt.Errorf("error parsing multipart form: %s", err))
		}
	}

	err = formDecoder.Decode(dest, r.Form)
	if err != nil {
		return myerrors.NewInvalidInputError(fmt.Errorf("error decoding form: %s", err))
	}

	err = validate.Struct(dest)
	if err != nil {
		return myerrors.NewInvalidInputError(formatValidationErrors(err))
	}
	return nil
}

func formatValidationErrors(err error) error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := []string{}
	for _, fieldErr := range errs {
		msgs = append(msgs, fmt.Sprintf("%s %s", fieldErr.Field(), validationMessage(fieldErr)))
	}
	sort.Strings(msgs)
	return fmt.Errorf("invalid input: %s", strings.Join(msgs, ", "))
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "email":
		return "must be a valid email"
	}
	return "is invalid"
}
