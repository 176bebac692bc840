package report

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Field errors are reported under their JSON names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation("simpleemail", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})

	// A malformed bounty surfaces as a negative number so it fails gte=0
	// with the same message as one.
	validate.RegisterCustomTypeFunc(func(v reflect.Value) interface{} {
		a := v.Interface().(OptionalAmount)
		if a.Malformed {
			return float64(-1)
		}
		if a.Value == nil {
			return nil
		}
		return *a.Value
	}, OptionalAmount{})
}

// FieldError is one failed constraint on a submitted field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// For returns the message for field, or "" when it passed.
func (e *ValidationError) For(field string) string {
	for _, f := range e.Fields {
		if f.Field == field {
			return f.Message
		}
	}
	return ""
}

var fieldMessages = map[string]map[string]string{
	"title": {
		"required": "Title is required",
		"max":      "Title cannot exceed 200 characters",
	},
	"description": {
		"required": "Description is required",
		"max":      "Description cannot exceed 5000 characters",
	},
	"severity": {
		"oneof": "Invalid severity level",
	},
	"companyName": {
		"required": "Company name is required",
		"max":      "Company name cannot exceed 100 characters",
	},
	"reporterEmail": {
		"required":    "Email is required",
		"simpleemail": "Invalid email address",
	},
	"bountyAmount": {
		"gte": "Bounty amount must be a positive number",
		"lte": "Bounty amount cannot exceed 1,000,000,000",
	},
}

// Validate normalizes in and checks it. A failure is always a *ValidationError.
func (in *CreateInput) Validate() error {
	in.Normalize()

	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "validate bug report")
	}

	out := &ValidationError{}
	for _, fe := range verrs {
		msg := fieldMessages[fe.Field()][fe.Tag()]
		if msg == "" {
			msg = "Invalid value"
		}
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Message: msg})
	}
	return out
}
