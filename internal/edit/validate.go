package edit

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrValidation matches every error returned by Validate.
var ErrValidation = errors.New("invalid edit action")

// InvalidRangeError is returned when an action's time range is negative or inverted.
type InvalidRangeError struct {
	StartTime float64
	EndTime   float64
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid time range: start %.3f, end %.3f", e.StartTime, e.EndTime)
}

func (e *InvalidRangeError) Is(target error) bool {
	return target == ErrValidation
}

// InvalidOptionsError is returned when a mosaic or telop action carries a
// missing or malformed options payload.
type InvalidOptionsError struct {
	Type   ActionType
	Field  string
	Reason string
}

func (e *InvalidOptionsError) Error() string {
	return fmt.Sprintf("invalid %s options: %s %s", e.Type, e.Field, e.Reason)
}

func (e *InvalidOptionsError) Is(target error) bool {
	return target == ErrValidation
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks that a is well-formed. It has no side effects.
func Validate(a Action) error {
	if !a.Type.Valid() {
		return fmt.Errorf("%w: unknown action type %q", ErrValidation, a.Type)
	}
	if math.IsNaN(a.StartTime) || math.IsNaN(a.EndTime) || a.StartTime < 0 || a.EndTime < a.StartTime {
		return &InvalidRangeError{StartTime: a.StartTime, EndTime: a.EndTime}
	}

	switch a.Type {
	case ActionMosaic:
		var opts MosaicOptions
		switch o := a.Options.(type) {
		case MosaicOptions:
			opts = o
		case *MosaicOptions:
			if o == nil {
				return missingOptions(a.Type)
			}
			opts = *o
		case nil:
			return missingOptions(a.Type)
		default:
			return &InvalidOptionsError{Type: a.Type, Field: "options", Reason: fmt.Sprintf("has type %s", o.ActionType())}
		}
		return checkStruct(a.Type, opts)

	case ActionTelop:
		var opts TelopOptions
		switch o := a.Options.(type) {
		case TelopOptions:
			opts = o
		case *TelopOptions:
			if o == nil {
				return missingOptions(a.Type)
			}
			opts = *o
		case nil:
			return missingOptions(a.Type)
		default:
			return &InvalidOptionsError{Type: a.Type, Field: "options", Reason: fmt.Sprintf("has type %s", o.ActionType())}
		}
		if strings.TrimSpace(opts.Text) == "" {
			return &InvalidOptionsError{Type: a.Type, Field: "text", Reason: "must not be empty"}
		}
		return checkStruct(a.Type, opts)
	}
	return nil
}

// ValidateAll validates every action and reports the first failure with its index.
func ValidateAll(actions []Action) error {
	for i, a := range actions {
		if err := Validate(a); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}
	return nil
}

func missingOptions(t ActionType) error {
	return &InvalidOptionsError{Type: t, Field: "options", Reason: "are required"}
}

func checkStruct(t ActionType, opts any) error {
	err := validate.Struct(opts)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		return &InvalidOptionsError{Type: t, Field: fe.Field(), Reason: "fails " + rule}
	}
	return &InvalidOptionsError{Type: t, Field: "options", Reason: err.Error()}
}
