// Package validation wraps a go-playground/validator singleton and turns its
// field errors into apperror validation failures named after JSON fields.
//
// Custom tags:
//   - itemtype: value is one of the model.ItemTypes
//   - titled:   raw JSON is an object with a non-empty string "title"
//   - notblank: non-empty after trimming whitespace
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	json "github.com/goccy/go-json"

	"github.com/sakif/spacedesk/internal/apperror"
	"github.com/sakif/spacedesk/internal/model"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator. It caches struct metadata, so there
// is only ever one.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})

		mustRegister(v, "notblank", validators.NotBlank)
		mustRegister(v, "itemtype", func(fl validator.FieldLevel) bool {
			return model.ItemType(fl.Field().String()).Valid()
		})
		mustRegister(v, "titled", func(fl validator.FieldLevel) bool {
			return HasTitle(fl.Field().Bytes())
		})

		validate = v
	})
	return validate
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: registering %q: %v", tag, err))
	}
}

// HasTitle reports whether raw is a JSON object whose "title" is a non-blank
// string.
func HasTitle(raw []byte) bool {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil || payload == nil {
		return false
	}
	var title string
	if err := json.Unmarshal(payload["title"], &title); err != nil {
		return false
	}
	return strings.TrimSpace(title) != ""
}

// Struct validates s and returns nil or the first failure as an
// *apperror.AppError of kind ErrValidation.
func Struct(s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperror.ValidationFailed("", err.Error())
	}
	fe := fieldErrs[0]
	if fe.Tag() == "titled" {
		return apperror.ValidationFailed(fe.Field()+".title", fe.Field()+".title is required")
	}
	return apperror.ValidationFailed(fe.Field(), translate(fe))
}

var messageTemplates = map[string]string{
	"required": "%s is required",
	"notblank": "%s is required",
	"itemtype": "%s must be one of " + itemTypeList(),
	"datetime": "%s must be a date in YYYY-MM-DD format",
}

func translate(fe validator.FieldError) string {
	field, tag, param := fe.Field(), fe.Tag(), fe.Param()

	if tmpl, ok := messageTemplates[tag]; ok {
		return fmt.Sprintf(tmpl, field)
	}

	isString := fe.Kind() == reflect.String
	switch tag {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, strings.ReplaceAll(param, " ", ", "))
	}
	return fmt.Sprintf("%s failed %s validation", field, tag)
}

func itemTypeList() string {
	names := make([]string, len(model.ItemTypes))
	for i, t := range model.ItemTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
