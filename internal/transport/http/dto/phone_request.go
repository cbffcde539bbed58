package dto

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vladosShikos/losb-back/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report json names, not Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		for i := 0; i < len(s); i++ {
			if s[i] < '0' || s[i] > '9' {
				return false
			}
		}
		return s != ""
	})
	return v
}

// validateStruct maps the first validator failure to a domain error.
func validateStruct(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return domain.ErrInternal(err)
	}

	fe := ves[0]
	switch fe.Tag() {
	case "required":
		return domain.ErrMissingField(fe.Field())
	case "digits":
		return domain.ErrInvalidField(fe.Field(), "must contain digits only")
	case "min":
		return domain.ErrInvalidField(fe.Field(), "must be at least "+fe.Param())
	case "max":
		return domain.ErrInvalidField(fe.Field(), "must be at most "+fe.Param())
	default:
		return domain.ErrInvalidField(fe.Field(), "invalid value")
	}
}

type RequestPhoneVerificationRequest struct {
	Code   int   `json:"code" validate:"required,min=1,max=999"`
	Number int64 `json:"number" validate:"required,min=1,max=999999999999999"`
}

func (r *RequestPhoneVerificationRequest) Validate() error {
	return validateStruct(r)
}

type VerifyPhoneRequest struct {
	Otp    string `json:"otp" validate:"required,max=12,digits"`
	Code   int    `json:"code" validate:"required,min=1,max=999"`
	Number int64  `json:"number" validate:"required,min=1,max=999999999999999"`
}

func (r *VerifyPhoneRequest) Validate() error {
	r.Otp = strings.TrimSpace(r.Otp)
	return validateStruct(r)
}
