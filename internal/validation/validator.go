// Package validation checks decoded request bodies against their struct
// tags and turns failures into apperror validation errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/rs/xid"

	"github.com/sakif/cardbook/internal/apperror"
	"github.com/sakif/cardbook/internal/model"
)

type Validator struct {
	v *validator.Validate
}

// New returns a validator that reports fields by their json names and
// knows the custom tags:
//
//	password  at least 8 characters with at least one letter
//	xid       a well-formed id
//	jobfield  one of the six job-info keys
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	// Registration only fails on an empty tag or nil func.
	_ = v.RegisterValidation("password", validPassword)
	_ = v.RegisterValidation("xid", validXID)
	_ = v.RegisterValidation("jobfield", validJobField)

	return &Validator{v: v}
}

// Validate returns nil or an *apperror.AppError carrying one message per
// failing field.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

// Var validates a single value, e.g. a path parameter, under field name.
func (v *Validator) Var(field string, value any, tag string) error {
	err := v.v.Var(value, tag)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return apperror.ValidationFailed(field, field+" "+friendlyMessage(verrs[0]))
	}
	return err
}

func (v *Validator) formatError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	details := make(map[string]string, len(verrs))
	for _, e := range verrs {
		details[e.Field()] = friendlyMessage(e)
	}
	return apperror.ValidationDetails("validation failed", details)
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url", "http_url":
		return "must be a valid URL"
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "oneof":
		return "must be one of: " + e.Param()
	case "eqfield":
		return "does not match " + e.Param()
	case "password":
		return "must be at least 8 characters and contain a letter"
	case "xid":
		return "must be a valid id"
	case "jobfield":
		return "must be one of: " + strings.Join(model.JobInfoFields, " ")
	default:
		return "is invalid"
	}
}

func validPassword(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return len([]rune(s)) >= 8 && strings.IndexFunc(s, unicode.IsLetter) >= 0
}

func validXID(fl validator.FieldLevel) bool {
	_, err := xid.FromString(fl.Field().String())
	return err == nil
}

func validJobField(fl validator.FieldLevel) bool {
	var j model.JobInfo
	_, ok := j.Field(fl.Field().String())
	return ok
}
