package validator

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/supplier-intake/intake-pipeline/internal/store/model"
)

var (
	externalIDRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._:@/+=-]{0,254}$`)
	contactIDRegex  = regexp.MustCompile(`^\+?[a-zA-Z0-9][a-zA-Z0-9._@-]{2,254}$`)
)

func externalIDValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return externalIDRegex.MatchString(val)
}

func contactIDValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return contactIDRegex.MatchString(strings.TrimSpace(val))
}

func contentTypeValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	_, err := model.ParseContentType(val)
	return err == nil
}

// mediaLocatorValidator accepts object keys and absolute s3/http(s) urls.
func mediaLocatorValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	if strings.TrimSpace(val) == "" {
		return false
	}
	if !strings.Contains(val, "://") {
		return !strings.HasPrefix(val, "/")
	}
	u, err := url.Parse(val)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "s3", "http", "https":
		return u.Host != ""
	default:
		return false
	}
}

func feedbackCategoryValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	_, err := model.ParseFeedbackCategory(strings.TrimSpace(val))
	return err == nil
}

func proposalTypeValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	_, err := model.ParseProposalType(val)
	return err == nil
}

func uuidValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(uuid.UUID)
	if !ok {
		return false
	}
	return val != uuid.UUID{}
}
