// Package inputval provides request input validation using waffle/pantry/validate.
//
// Define an input struct with validate tags, decode the request body into it,
// and call Validate to get user-friendly error messages.
//
// Example:
//
//	type insertLinkInput struct {
//	    URL         string `json:"url" validate:"required,linkurl" label:"Link URL"`
//	    Placeholder string `json:"placeholder" validate:"required,nodelim,max=200" label:"Placeholder"`
//	}
//
//	if res := inputval.Validate(in); res.HasErrors() {
//	    jsonutil.ValidationError(w, res.Fields())
//	    return
//	}
package inputval

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/dalemusser/stratanotify/internal/app/system/templaterender"
	"github.com/dalemusser/waffle/pantry/validate"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Result holds validation results with user-friendly messages.
type Result struct {
	Errors []FieldError
}

// FieldError represents a validation error for a single field.
type FieldError struct {
	Field   string
	Label   string
	Message string
}

// HasErrors returns true if there are any validation errors.
func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// First returns the first error message, or empty string if no errors.
func (r *Result) First() string {
	if len(r.Errors) > 0 {
		return r.Errors[0].Message
	}
	return ""
}

// Fields maps each failing field's json name to its message.
func (r *Result) Fields() map[string]string {
	out := make(map[string]string, len(r.Errors))
	for _, e := range r.Errors {
		if _, seen := out[e.Field]; !seen {
			out[e.Field] = e.Message
		}
	}
	return out
}

var triggerPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// customRules are registered on the shared validator under their map key.
var customRules = map[string]func(string) bool{
	"linkurl":     IsValidLinkURL,
	"nodelim":     HasNoDelimiters,
	"triggertype": IsValidTriggerType,
	"objectid":    IsValidObjectID,
	"sessionid":   IsValidSessionID,
}

var validator = sync.OnceValue(func() *validate.Validator {
	v := validate.New(validate.WithStopOnFirstError())
	for name, fn := range customRules {
		v.RegisterRuleFunc(name, stringRule(fn), name)
	}
	return v
})

func stringRule(fn func(string) bool) func(any) bool {
	return func(value any) bool {
		s, ok := value.(string)
		return ok && fn(s)
	}
}

// Validate validates a struct and returns a Result with user-friendly errors.
// The struct should have `validate` tags for rules and optional `label` tags
// for user-friendly field names.
//
// Supported validation rules (from pantry/validate):
//   - required: field must not be empty
//   - oneof=a b c: field must be one of the specified values
//   - min=N: string length or numeric value must be >= N
//   - max=N: string length or numeric value must be <= N
//
// Custom validation rules (registered by this package):
//   - linkurl: an absolute http, https or mailto URL that renders as a link
//   - nodelim: no link directive delimiters ([ ] ( ))
//   - triggertype: lower-case snake_case identifier, at most 64 characters
//   - objectid: a MongoDB ObjectID hex string
//   - sessionid: an editing session id (UUID)
func Validate(s any) *Result {
	result := &Result{}

	err := validator().Struct(s)
	if err == nil {
		return result
	}

	labels := getFieldLabels(s)

	if errs, ok := err.(validate.Errors); ok {
		for _, e := range errs {
			label := labels[e.Field]
			if label == "" {
				label = e.Field
			}

			result.Errors = append(result.Errors, FieldError{
				Field:   e.Field,
				Label:   label,
				Message: formatMessage(label, e.Rule, e.Param),
			})
		}
	}

	return result
}

// getFieldLabels extracts the "label" tag from struct fields, keyed by the
// json name when there is one.
func getFieldLabels(s any) map[string]string {
	labels := make(map[string]string)

	val := reflect.ValueOf(s)
	if val.Kind() == reflect.Pointer {
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return labels
	}

	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)

		fieldName := field.Name
		if jsonTag := field.Tag.Get("json"); jsonTag != "" {
			parts := strings.Split(jsonTag, ",")
			if parts[0] != "" && parts[0] != "-" {
				fieldName = parts[0]
			}
		}

		if label := field.Tag.Get("label"); label != "" {
			labels[fieldName] = label
		}
	}

	return labels
}

func formatMessage(label, rule, param string) string {
	switch rule {
	case "required":
		return label + " is required."
	case "oneof", "enum":
		return label + " must be one of: " + strings.ReplaceAll(param, " ", ", ") + "."
	case "min":
		return label + " must be at least " + param + " characters."
	case "max":
		return label + " must be at most " + param + " characters."
	case "linkurl":
		return label + " must be an http, https or mailto URL."
	case "nodelim":
		return label + " must not contain [ ] ( or )."
	case "triggertype":
		return label + " must be lower-case letters, digits and underscores."
	case "objectid", "sessionid":
		return label + " is not a valid ID."
	default:
		return label + " is invalid."
	}
}

// IsValidLinkURL reports whether s would be rendered as an anchor.
func IsValidLinkURL(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && HasNoDelimiters(s) && templaterender.AllowedURL(s)
}

// HasNoDelimiters reports whether s is free of link directive delimiters.
func HasNoDelimiters(s string) bool {
	return !strings.ContainsAny(s, "[]()")
}

// IsValidTriggerType checks the trigger type key format.
func IsValidTriggerType(s string) bool {
	return triggerPattern.MatchString(s)
}

// IsValidObjectID checks if the given string is a valid MongoDB ObjectID hex.
func IsValidObjectID(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	_, err := primitive.ObjectIDFromHex(s)
	return err == nil
}

// IsValidSessionID checks if the given string is a UUID as issued by the
// editing session registry.
func IsValidSessionID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
