// ==============================================================================
// VALIDATOR PACKAGE - pkg/validator/validator.go
// ==============================================================================
package validator

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"payoutdesk/pkg/domain"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := &Validator{
		validate: validator.New(),
	}
	v.registerCustomValidations()
	return v
}

func (v *Validator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		// Format validation errors
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			var errMessages []string
			for _, e := range validationErrors {
				errMessages = append(errMessages, fmt.Sprintf(
					"field '%s' failed validation '%s'",
					e.Field(),
					e.Tag(),
				))
			}
			return fmt.Errorf("validation failed: %s", strings.Join(errMessages, "; "))
		}
		return err
	}
	return nil
}

func (v *Validator) registerCustomValidations() {
	// decimal.Decimal is validated as a string so that "required" means
	// "present" and amount positivity stays a domain rule with its own error code.
	v.validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if val, ok := field.Interface().(decimal.Decimal); ok {
			return val.String()
		}
		return nil
	}, decimal.Decimal{})

	_ = v.validate.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		return currencyPattern.MatchString(fl.Field().String())
	})
	_ = v.validate.RegisterValidation("work_status", func(fl validator.FieldLevel) bool {
		return domain.WorkStatus(fl.Field().String()).Valid()
	})
	_ = v.validate.RegisterValidation("withdrawal_status", func(fl validator.FieldLevel) bool {
		return domain.WithdrawalStatus(fl.Field().String()).Valid()
	})
}
