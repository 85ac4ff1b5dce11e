package models

import (
	"net/url"
	"reflect"
	"strings"

	"github.com/ajitpratap0/sfbridge/pkg/errors"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Credentials authorise a single call against a CRM instance.
// They are supplied by the caller on every request and never retained.
type Credentials struct {
	InstanceURL string `json:"instance_url" form:"instance_url" validate:"required,http_url"`
	AccessToken string `json:"access_token" form:"access_token" validate:"required"`
}

// Validate checks that the instance URL is an absolute http(s) URL with a host
// and that a token is present.
func (c Credentials) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return errors.New(errors.ErrorTypeValidation,
				"invalid credentials: "+verrs[0].Field()+" failed "+verrs[0].Tag()).
				WithDetail("field", verrs[0].Field())
		}
		return errors.Wrap(err, errors.ErrorTypeValidation, "invalid credentials")
	}

	u, err := url.Parse(c.InstanceURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New(errors.ErrorTypeValidation, "invalid credentials: instance_url must be an absolute http(s) URL")
	}
	return nil
}

// BaseURL returns the instance URL without a trailing slash
func (c Credentials) BaseURL() string {
	return strings.TrimRight(c.InstanceURL, "/")
}

// BearerHeader returns the Authorization header value
func (c Credentials) BearerHeader() string {
	return "Bearer " + c.AccessToken
}
