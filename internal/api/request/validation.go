package request

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

var (
	nameRegex  = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,62}$`)
	siretRegex = regexp.MustCompile(`^\d{14}$`)
	inseeRegex = regexp.MustCompile(`^\d{5}$`)
)

func init() {
	validate.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return nameRegex.MatchString(fl.Field().String())
	})
	validate.RegisterValidation("siret", func(fl validator.FieldLevel) bool {
		return siretRegex.MatchString(fl.Field().String())
	})
	validate.RegisterValidation("insee", func(fl validator.FieldLevel) bool {
		return inseeRegex.MatchString(fl.Field().String())
	})
}

func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}

func RequireID(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("missing required ID")
	}
	return s, nil
}

// RequireServiceID parses a numeric service id from a URL parameter.
func RequireServiceID(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("missing required ID")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid service ID %q", s)
	}
	return id, nil
}
