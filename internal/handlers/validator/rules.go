package validator

import "github.com/go-playground/validator/v10"

func registerFn(tag string, fn func(fl validator.FieldLevel) bool) func(v *validator.Validate) {
	return func(v *validator.Validate) {
		_ = v.RegisterValidation(tag, fn)
	}
}

func NewIngestValidationRules() []ValidationRule {
	return []ValidationRule{
		{
			Rule: registerFn("external_id", externalIDValidator),
		},
		{
			Rule: registerFn("content_type", contentTypeValidator),
		},
		{
			Rule: registerFn("media_locator", mediaLocatorValidator),
		},
	}
}

func NewReviewValidationRules() []ValidationRule {
	return []ValidationRule{
		{
			Rule: registerFn("feedback_category", feedbackCategoryValidator),
		},
		{
			Rule: registerFn("submission_id", uuidValidator),
		},
	}
}

func NewSupplierValidationRules() []ValidationRule {
	return []ValidationRule{
		{
			Rule: registerFn("contact_id", contactIDValidator),
		},
	}
}

func NewImprovementValidationRules() []ValidationRule {
	return []ValidationRule{
		{
			Rule: registerFn("proposal_type", proposalTypeValidator),
		},
	}
}
