package validator

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	ErrInvalidEmail   = errors.New("invalid email")
	ErrInvalidPhone   = errors.New("invalid phone")
	ErrInvalidPayload = errors.New("invalid payload")
)

var (
	emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phoneRegex = regexp.MustCompile(`^\+?[0-9][0-9 ()/-]{5,30}$`)
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	jobSubmissionSchema = mustCompile("job_submission.json")
	paymentEventSchema  = mustCompile("payment_event.json")
)

func mustCompile(name string) *jsonschema.Schema {
	raw, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		panic(fmt.Sprintf("read schema %s: %v", name, err))
	}
	return jsonschema.MustCompileString("https://leadmarket.local/schemas/"+name, string(raw))
}

// ValidateJobSubmission checks an intake payload before it is decoded.
func ValidateJobSubmission(raw []byte) error {
	return validate(jobSubmissionSchema, raw)
}

func ValidatePaymentEvent(raw []byte) error {
	return validate(paymentEventSchema, raw)
}

func validate(schema *jsonschema.Schema, raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

func ValidatePhone(phone string) error {
	if !phoneRegex.MatchString(phone) {
		return ErrInvalidPhone
	}
	return nil
}
