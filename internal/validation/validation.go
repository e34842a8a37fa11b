package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"veggiemarket/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	cardNumberRe = regexp.MustCompile(`^[0-9]{13,19}$`)
	cardExpiryRe = regexp.MustCompile(`^(0[1-9]|1[0-2])/[0-9]{2}$`)
	cardCVVRe    = regexp.MustCompile(`^[0-9]{3,4}$`)
)

// New returns a validator that understands decimal prices, product
// categories, device ids and checkout forms. Field names in errors use the json tag.
func New() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		c := models.Category(fl.Field().String())
		return c != models.CategoryAll && c.Valid()
	})
	v.RegisterAlias("device_id", "uuid|alphanum")
	v.RegisterStructValidation(checkoutFormRules, models.CheckoutForm{})
	return v
}

func checkoutFormRules(sl validator.StructLevel) {
	form := sl.Current().Interface().(models.CheckoutForm)
	if form.PaymentMethod != models.PaymentCreditCard {
		return
	}
	number := strings.ReplaceAll(form.CardNumber, " ", "")
	switch {
	case number == "":
		sl.ReportError(form.CardNumber, "card_number", "CardNumber", "required", "")
	case !cardNumberRe.MatchString(number):
		sl.ReportError(form.CardNumber, "card_number", "CardNumber", "card", "")
	}
	switch {
	case form.CardExpiry == "":
		sl.ReportError(form.CardExpiry, "card_expiry", "CardExpiry", "required", "")
	case !cardExpiryRe.MatchString(form.CardExpiry):
		sl.ReportError(form.CardExpiry, "card_expiry", "CardExpiry", "expiry", "")
	}
	switch {
	case form.CardCVV == "":
		sl.ReportError(form.CardCVV, "card_cvv", "CardCVV", "required", "")
	case !cardCVVRe.MatchString(form.CardCVV):
		sl.ReportError(form.CardCVV, "card_cvv", "CardCVV", "cvv", "")
	}
}

// Messages flattens a validation error into field -> message. It returns nil
// when err is not a validator error.
func Messages(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, e := range verrs {
		out[e.Field()] = message(e)
	}
	return out
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", e.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", e.Param())
	case "numeric":
		return "must contain digits only"
	case "gte":
		return fmt.Sprintf("must be %s or more", e.Param())
	case "lte":
		return fmt.Sprintf("must be %s or less", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "category":
		return "is not a known category"
	case "card":
		return "must be a 13 to 19 digit card number"
	case "expiry":
		return "must be in MM/YY format"
	case "cvv":
		return "must be 3 or 4 digits"
	}
	return fmt.Sprintf("failed on the '%s' tag", e.Tag())
}
