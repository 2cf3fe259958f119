package utils

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

var actorIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._@-]+$`)

func init() {
	validate = validator.New()

	validate.RegisterValidation("actor_id", func(fl validator.FieldLevel) bool {
		return IsValidActorID(fl.Field().String())
	})
}

// ValidateStruct validates a struct using validation tags
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// IsValidUUID checks if a string is a valid UUID
func IsValidUUID(uuid string) bool {
	r := regexp.MustCompile("^[a-fA-F0-9]{8}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{12}$")
	return r.MatchString(uuid)
}

// IsValidActorID checks if a string is usable as an acting-user identifier
func IsValidActorID(id string) bool {
	return id != "" && actorIDPattern.MatchString(id)
}

// IsValidationError reports whether err came from struct validation
func IsValidationError(err error) bool {
	_, ok := err.(validator.ValidationErrors)
	return ok
}
