package engine

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/miradorstack/mirador-rcm/internal/utils"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError converts the first validator failure into a ValidationError naming the
// offending field and value.
func validationError(op string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return utils.NewAppError(op, "validate input", err)
	}
	fe := verrs[0]
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	msg := fmt.Sprintf("failed %s", fe.Tag())
	if fe.Param() != "" {
		msg += "=" + fe.Param()
	}
	return utils.Validation(op, field, fe.Value(), msg)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// checkPositive rejects a distribution parameter: zero is a DomainError, anything else that is
// not a positive finite number is a ValidationError.
func checkPositive(op, field string, v float64) error {
	if v == 0 {
		return utils.Domain(op, field, v, "parameter must be non-zero; the model divides by it")
	}
	if !finite(v) || v < 0 {
		return utils.Validation(op, field, v, "must be a positive finite number")
	}
	return nil
}
