package validate

import (
	"github.com/go-playground/validator/v10"

	"chat-service/internal/apperr"
)

var v = validator.New()

func Struct(s any) error {
	if err := v.Struct(s); err != nil {
		return apperr.Wrap(apperr.CodeInvalidArgument, "validation failed", err)
	}
	return nil
}
