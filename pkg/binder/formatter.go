package binder

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
	"github.com/segmentio/encoding/json"
)

const (
	date       = "date"
	mx         = "max"
	mn         = "min"
	oneof      = "oneof"
	required   = "required"
	requiredIf = "required_if"
	urlTag     = "url"
)

func formatUnmarshalTypeError(err *json.UnmarshalTypeError) string {
	// FIXME: this doesn't work well for incorrect map values, e.g. it will say
	// `"metadata" should be a string instead of a object` if you pass in
	// `{"metadata":{"foo":{"bar":"baz"}}}`.
	return fmt.Sprintf("%q should be of type %s", strings.Trim(err.Field, "."), err.Type)
}

func formatSchemaConversionError(err schema.ConversionError) string {
	return fmt.Sprintf("%q should be of type %s", err.Key, err.Type)
}

func formatValidationError(err validator.FieldError) string {
	field := err.Field()

	switch err.Tag() {
	case date:
		return fmt.Sprintf("%q should be in the format of YYYY-MM-DD", field)
	case urlTag:
		return fmt.Sprintf("%q is not a valid http(s) URL", field)
	case mx:
		return formatBound(err, "less")
	case mn:
		return formatBound(err, "greater")
	case oneof:
		valids := []string{}
		for _, p := range strings.Fields(err.Param()) {
			valids = append(valids, fmt.Sprintf("%q", p))
		}
		return fmt.Sprintf("%q must be one of the following: %s", field, strings.Join(valids, ", "))
	case required, requiredIf:
		return fmt.Sprintf("%q is required", field)
	default:
		// these print statements aid in determining how to construct
		// the error messages for validation functions that haven't been
		// implemented yet
		fmt.Println("actual tag", err.ActualTag())
		fmt.Println("field", field)
		fmt.Println("param", err.Param())
		fmt.Println("tag", err.Tag())
		fmt.Println("kind", err.Kind())

		return "NOT IMPLEMENTED YET"
	}
}

// formatBound renders min/max messages. Numbers compare by value; strings and
// slices compare by length.
func formatBound(err validator.FieldError, direction string) string {
	field := err.Field()
	param := err.Param()

	//exhaustive:ignore
	switch err.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return fmt.Sprintf("%q must be %s than or equal to %s", field, direction, param)
	case reflect.Slice:
		return fmt.Sprintf("%q length must be %s than or equal to %s %s", field, direction, param, pluralize("element", param))
	default:
		return fmt.Sprintf("%q length must be %s than or equal to %s %s", field, direction, param, pluralize("character", param))
	}
}

func pluralize(resource, param string) string {
	if param == "1" {
		return resource
	}
	return resource + "s"
}
