package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/errs"
)

type validatorSvc struct {
	validate   *validator.Validate
	translator ut.Translator
}

var (
	validatorOnce sync.Once
	validatorInst *validatorSvc
)

// requestValidator returns the shared validator, reporting fields by their
// JSON names with English messages.
func requestValidator() *validatorSvc {
	validatorOnce.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			name, _, _ := strings.Cut(tag, ",")
			return name
		})
		_ = en_translations.RegisterDefaultTranslations(v, trans)

		validatorInst = &validatorSvc{validate: v, translator: trans}
	})
	return validatorInst
}

// decodeJSON reads a size-limited JSON body into dst and validates it.
// Failures are InvalidRequest errors carrying the first validation message.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxJSONBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errs.Wrap(errs.KindInvalidRequest, err, errInvalidRequestBody)
	}

	svc := requestValidator()
	if err := svc.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return errs.New(errs.KindInvalidRequest, fieldErrs[0].Translate(svc.translator))
		}
		return errs.Wrap(errs.KindInvalidRequest, err, "validation failed")
	}
	return nil
}
