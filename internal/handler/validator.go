package handler

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
)

// Validator plugs go-playground/validator into echo's c.Validate.
type Validator struct {
	v *validator.Validate
}

// NewValidator registers the "clock" tag for "HH:MM" strings and one tag per
// enum (resource_type, key_type, assignment_type, condition). Field names in
// errors use the json tag.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := model.ParseClock(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("resource_type", func(fl validator.FieldLevel) bool {
		_, ok := model.ParseResourceType(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("key_type", func(fl validator.FieldLevel) bool {
		_, ok := model.ParseKeyType(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("assignment_type", func(fl validator.FieldLevel) bool {
		_, ok := model.ParseAssignmentType(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("condition", func(fl validator.FieldLevel) bool {
		_, ok := model.ParseReturnCondition(fl.Field().String())
		return ok
	})
	return &Validator{v: v}
}

// Validate implements echo.Validator.
func (v *Validator) Validate(i any) error { return v.v.Struct(i) }
