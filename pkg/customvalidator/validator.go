package customvalidator

import (
	"reflect"
	"regexp"

	"github.com/go-playground/validator/v10"

	"clan-backend/internal/authz"
	"clan-backend/internal/entities"
)

var fieldNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// RegisterCustomValidations регистрирует правила модели доступа.
// registry нужен для resource_type и field_list.
func RegisterCustomValidations(v *validator.Validate, registry *authz.Registry) error {
	if err := v.RegisterValidation("access_level", isAccessLevel); err != nil {
		return err
	}
	if err := v.RegisterValidation("resource_type", resourceTypeRule(registry)); err != nil {
		return err
	}
	if err := v.RegisterValidation("field_list", fieldListRule(registry)); err != nil {
		return err
	}
	return nil
}

func stringValue(field reflect.Value) (string, bool) {
	switch field.Kind() {
	case reflect.String:
		return field.String(), true
	case reflect.Ptr:
		if !field.IsNil() && field.Elem().Kind() == reflect.String {
			return field.Elem().String(), true
		}
	}
	return "", false
}

func isAccessLevel(fl validator.FieldLevel) bool {
	s, ok := stringValue(fl.Field())
	return ok && entities.AccessLevel(s).Valid()
}

func resourceTypeRule(registry *authz.Registry) validator.Func {
	return func(fl validator.FieldLevel) bool {
		s, ok := stringValue(fl.Field())
		if !ok {
			return false
		}
		_, registered := registry.Lookup(authz.ResourceType(s))
		return registered
	}
}

// fieldListRule: каждый элемент "*" или имя поля. Если у родительской структуры есть
// ResourceType зарегистрированного ресурса, имена сверяются с его колонками.
func fieldListRule(registry *authz.Registry) validator.Func {
	return func(fl validator.FieldLevel) bool {
		field := fl.Field()
		if field.Kind() != reflect.Slice {
			return false
		}

		var res *authz.Resource
		parent := fl.Parent()
		if parent.Kind() == reflect.Ptr {
			parent = parent.Elem()
		}
		if parent.Kind() == reflect.Struct {
			if rt := parent.FieldByName("ResourceType"); rt.IsValid() {
				if s, ok := stringValue(rt); ok {
					res, _ = registry.Lookup(authz.ResourceType(s))
				}
			}
		}

		for i := 0; i < field.Len(); i++ {
			name, ok := stringValue(field.Index(i))
			if !ok {
				return false
			}
			if name == entities.AllFieldsMarker {
				continue
			}
			if !fieldNameRegex.MatchString(name) {
				return false
			}
			if res != nil && !res.HasColumn(name) {
				return false
			}
		}
		return true
	}
}
