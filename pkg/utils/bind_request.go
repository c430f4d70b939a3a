package utils

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/labstack/echo/v4"
)

func BindRequest[T any](c echo.Context) (T, error) {
	var v T

	if err := c.Bind(&v); err != nil {
		return v, httperror.WrapError(http.StatusBadRequest, err)
	}

	if v, err := Validate(v); err != nil {
		return v, httperror.WrapError(http.StatusBadRequest, err)
	}

	return v, nil
}

// EntityKindParam reads an entity kind path parameter, accepting the kind aliases.
func EntityKindParam(c echo.Context, name string) (models.EntityKind, error) {
	return models.ParseEntityKind(c.Param(name))
}

// OptionalBoolQuery parses a boolean query parameter. An absent parameter is nil.
func OptionalBoolQuery(c echo.Context, name string) (*bool, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "query parameter '"+name+"' must be a boolean")
	}
	return &value, nil
}

// ListQuery splits a comma separated query parameter, dropping blanks.
func ListQuery(c echo.Context, name string) []string {
	items := []string{}
	for _, raw := range c.QueryParams()[name] {
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
	}
	return items
}
