package payload

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

var (
	validatorOnce     sync.Once
	sharedValidator   *validator.Validate
	sharedTranslator  ut.Translator
	validatorSetupErr error
)

// SchemaError reports every rule a payload violated, in field order.
type SchemaError struct {
	Violations []string
}

func (e *SchemaError) Error() string {
	return "payload: " + strings.Join(e.Violations, "; ")
}

// Unwrap exposes ErrSchemaMismatch to errors.Is.
func (e *SchemaError) Unwrap() error {
	return ErrSchemaMismatch
}

// Decode extracts a JSON object from raw, unmarshals it into T and checks T's validate tags.
func Decode[T any](raw string) (T, error) {
	var value T
	object, err := ExtractObject(raw)
	if err != nil {
		return value, err
	}
	if err := json.Unmarshal(object, &value); err != nil {
		// wrong JSON types (string where an integer is expected) are shape errors, not parse errors
		return value, &SchemaError{Violations: []string{err.Error()}}
	}
	if err := Validate(value); err != nil {
		return value, err
	}
	return value, nil
}

// Validate runs the shared validator against value.
func Validate(value any) error {
	validate, translator, err := loadValidator()
	if err != nil {
		return err
	}
	if err := validate.Struct(value); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) {
			violations := make([]string, 0, len(fieldErrors))
			for _, fieldError := range fieldErrors {
				violations = append(violations, fmt.Sprintf("%s: %s", trimRootNamespace(fieldError.Namespace()), fieldError.Translate(translator)))
			}
			return &SchemaError{Violations: violations}
		}
		return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	return nil
}

func loadValidator() (*validator.Validate, ut.Translator, error) {
	validatorOnce.Do(func() {
		validate := validator.New(validator.WithRequiredStructEnabled())

		enLocale := en.New()
		universal := ut.New(enLocale, enLocale)
		translator, _ := universal.GetTranslator("en")
		if err := enTranslations.RegisterDefaultTranslations(validate, translator); err != nil {
			validatorSetupErr = fmt.Errorf("failed to register default translations: %w", err)
			return
		}

		if err := registerWholeNumber(validate, translator); err != nil {
			validatorSetupErr = err
			return
		}

		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		sharedValidator = validate
		sharedTranslator = translator
	})
	return sharedValidator, sharedTranslator, validatorSetupErr
}

func registerWholeNumber(validate *validator.Validate, translator ut.Translator) error {
	err := validate.RegisterValidation("wholenumber", func(field validator.FieldLevel) bool {
		switch field.Field().Kind() {
		case reflect.Float32, reflect.Float64:
			value := field.Field().Float()
			return !math.IsInf(value, 0) && value == math.Trunc(value)
		default:
			return true
		}
	})
	if err != nil {
		return fmt.Errorf("failed to register wholenumber validation: %w", err)
	}
	err = validate.RegisterTranslation("wholenumber", translator,
		func(translator ut.Translator) error {
			return translator.Add("wholenumber", "{0} must be a whole number", true)
		},
		func(translator ut.Translator, fieldError validator.FieldError) string {
			message, _ := translator.T("wholenumber", fieldError.Field())
			return message
		},
	)
	if err != nil {
		return fmt.Errorf("failed to register wholenumber translation: %w", err)
	}
	return nil
}

func trimRootNamespace(namespace string) string {
	if index := strings.Index(namespace, "."); index >= 0 {
		return namespace[index+1:]
	}
	return namespace
}
