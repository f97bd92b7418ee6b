package config

import (
	stdErrors "errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/reglet-dev/luabridge/domain/entities"
	"github.com/reglet-dev/luabridge/domain/errors"
)

// validate is a package-level singleton; validator caches struct metadata.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks cfg against its struct tags. The first failing field is
// reported as a *errors.ConfigError.
func Validate(cfg entities.Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if stdErrors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &errors.ConfigError{
			Field: fe.Namespace(),
			Err:   fmt.Errorf("value %v does not satisfy %q", fe.Value(), ruleOf(fe)),
		}
	}
	return &errors.ConfigError{Err: err}
}

func ruleOf(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}
