package domain

import (
	"fmt"
	"math"
	"reflect"

	"github.com/go-playground/validator/v10"
)

// validate is the package-level validator instance used for struct validation.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("finite", isFinite); err != nil {
		panic(err)
	}
	return v
}

// isFinite backs the "finite" tag: floats must not be NaN or infinite.
func isFinite(fl validator.FieldLevel) bool {
	switch fl.Field().Kind() {
	case reflect.Float32, reflect.Float64:
		f := fl.Field().Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	default:
		return true
	}
}

// Validator exposes the shared validator so other packages validate with the
// same instance and registered rules.
func Validator() *validator.Validate { return validate }

// checkProbability rejects values outside [0, 1] and NaN.
func checkProbability(name string, p float64) error {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return fmt.Errorf("%w: %s=%v", ErrInvalidProbability, name, p)
	}
	return nil
}
