// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	hexColorRegex = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
	ibanRegex     = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Za-z0-9]{11,30}$`)
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("hex_color", validateHexColor)
		_ = v.RegisterValidation("iban", validateIBAN)
		_ = v.RegisterValidation("transaction_type", validateTransactionType)
		_ = v.RegisterValidation("recurrence", validateRecurrence)
		_ = v.RegisterValidation("sort_key", validateSortKey)
		_ = v.RegisterValidation("log_level", validateLogLevel)
	}
}

func validateHexColor(fl validator.FieldLevel) bool {
	return hexColorRegex.MatchString(fl.Field().String())
}

func validateIBAN(fl validator.FieldLevel) bool {
	return ibanRegex.MatchString(fl.Field().String())
}

func validateTransactionType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "EXPENSE", "INCOME", "ACCOUNTTRANSFER", "CATEGORYTRANSFER":
		return true
	}
	return false
}

func validateRecurrence(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "ONCE", "DAILY", "WEEKLY", "BIWEEKLY", "MONTHLY", "QUARTERLY", "YEARLY":
		return true
	}
	return false
}

func validateSortKey(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "date", "amount", "account", "recipient", "category", "reconciled":
		return true
	}
	return false
}

func validateLogLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
