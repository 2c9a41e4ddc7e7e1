package server

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/voyagen/m3ueditor/internal/models"
)

// fieldErrors collects messages per request field, keyed by JSON name.
type fieldErrors map[string][]string

func (f fieldErrors) add(field, msg string) {
	f[field] = append(f[field], msg)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("interval", func(fl validator.FieldLevel) bool {
		s := strings.TrimSpace(fl.Field().String())
		if s == "" {
			return true
		}
		_, err := models.ParseSyncInterval(s)
		return err == nil
	})
	return v
}

// validateStruct runs the struct tags of dst and returns field messages.
func (s *Server) validateStruct(dst any) fieldErrors {
	err := s.validate.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fieldErrors{"body": {err.Error()}}
	}
	out := fieldErrors{}
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		out.add(field, message(fe))
	}
	return out
}

func message(fe validator.FieldError) string {
	name := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required", "required_with":
		return fmt.Sprintf("The %s field is required.", name)
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("The %s field must not be greater than %s characters.", name, fe.Param())
		}
		return fmt.Sprintf("The %s field must not be greater than %s.", name, fe.Param())
	case "min":
		switch fe.Kind() {
		case reflect.Slice:
			return fmt.Sprintf("The %s field must have at least %s items.", name, fe.Param())
		case reflect.String:
			return fmt.Sprintf("The %s field must be at least %s characters.", name, fe.Param())
		}
		return fmt.Sprintf("The %s field must be at least %s.", name, fe.Param())
	case "gt":
		return fmt.Sprintf("The %s field must be greater than %s.", name, fe.Param())
	case "http_url", "url":
		return fmt.Sprintf("The %s field must be a valid URL.", name)
	case "email":
		return fmt.Sprintf("The %s field must be a valid email address.", name)
	case "oneof":
		return fmt.Sprintf("The selected %s is invalid.", name)
	case "interval":
		return fmt.Sprintf("The %s field must be an interval such as \"24 hours\".", name)
	default:
		return fmt.Sprintf("The %s field is invalid.", name)
	}
}

// checkOwned adds a field error when id is set but is not a record of
// table owned by userID. Another user's record is reported like a missing one.
func (s *Server) checkOwned(ctx context.Context, errs fieldErrors, userID int64, table, field string, id *int64) error {
	if id == nil {
		return nil
	}
	owned, err := s.store.OwnedIDs(ctx, table, userID, []int64{*id})
	if err != nil {
		return err
	}
	if len(owned) == 0 {
		errs.add(field, fmt.Sprintf("The selected %s is invalid.", strings.ReplaceAll(field, "_", " ")))
	}
	return nil
}

// checkOwnedList is checkOwned for a list field; errors are keyed field.N.
func (s *Server) checkOwnedList(ctx context.Context, errs fieldErrors, userID int64, table, field string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	owned, err := s.store.OwnedIDs(ctx, table, userID, ids)
	if err != nil {
		return err
	}
	ok := make(map[int64]bool, len(owned))
	for _, id := range owned {
		ok[id] = true
	}
	for i, id := range ids {
		if !ok[id] {
			key := fmt.Sprintf("%s.%d", field, i)
			errs.add(key, fmt.Sprintf("The selected %s is invalid.", key))
		}
	}
	return nil
}
