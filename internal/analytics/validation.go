package analytics

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/linkping/linkping/internal/apperror"
	"github.com/linkping/linkping/internal/model"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		validate.RegisterStructValidation(validateDateRange, model.AnalyticsRequest{})
	})
	return validate
}

// validateDateRange rejects an end date before the start date and spans
// wider than MaxDateRangeDays. Unparseable dates are left to the field tags.
func validateDateRange(sl validator.StructLevel) {
	req := sl.Current().Interface().(model.AnalyticsRequest)
	if req.StartDate == nil || req.EndDate == nil {
		return
	}

	start, errStart := time.Parse(model.DateLayout, *req.StartDate)
	end, errEnd := time.Parse(model.DateLayout, *req.EndDate)
	if errStart != nil || errEnd != nil {
		return
	}

	if end.Before(start) {
		sl.ReportError(req.EndDate, "end_date", "EndDate", "date_order", "")
		return
	}
	if end.Sub(start) > model.MaxDateRangeDays*24*time.Hour {
		sl.ReportError(req.EndDate, "end_date", "EndDate", "date_span", "")
	}
}

// ValidateRequest checks req. Every failure wraps apperror.ErrValidation
// and lists each offending field.
func ValidateRequest(req model.AnalyticsRequest) error {
	err := requestValidator().Struct(req)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("%w: %w", apperror.ErrValidation, err)
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, fieldMessage(fe))
	}
	return fmt.Errorf("%w: %s", apperror.ErrValidation, strings.Join(messages, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "datetime":
		return fmt.Sprintf("%s must be a valid date in YYYY-MM-DD format", fe.Field())
	case "date_order":
		return "end_date cannot be before start_date"
	case "date_span":
		return fmt.Sprintf("date range cannot exceed %d days", model.MaxDateRangeDays)
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
