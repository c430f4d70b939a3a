package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	clerrors "github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonContext(method, target, body string) echo.Context {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return echo.New().NewContext(req, httptest.NewRecorder())
}

func TestBindRequest(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"name":"Budget","declared_type":"decimal","entity_kind":"contato"}`},
		{name: "missing name", body: `{"declared_type":"decimal","entity_kind":"contato"}`, wantErr: true},
		{name: "malformed", body: `{"name":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := jsonContext(http.MethodPost, "/", tt.body)
			req, err := BindRequest[models.CreateFieldDefinitionRequest](c)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Budget", req.Name)
		})
	}
}

func TestValidateValue(t *testing.T) {
	assert.NoError(t, ValidateValue("a@b.com", "email"))
	err := ValidateValue("nope", "email")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rule 'email'")
}

func TestEntityKindParam(t *testing.T) {
	c := jsonContext(http.MethodGet, "/", "")
	c.SetParamNames("kind")
	c.SetParamValues("deal")

	kind, err := EntityKindParam(c, "kind")
	require.NoError(t, err)
	assert.Equal(t, models.EntityKindOpportunity, kind)

	c.SetParamValues("invoice")
	_, err = EntityKindParam(c, "kind")
	assert.True(t, clerrors.IsValidationError(err))
}

func TestQueryHelpers(t *testing.T) {
	c := jsonContext(http.MethodGet, "/?keys=name,%20email&keys=custom_budget,&flag=true&bad=maybe", "")

	assert.Equal(t, []string{"name", "email", "custom_budget"}, ListQuery(c, "keys"))
	assert.Empty(t, ListQuery(c, "missing"))

	flag, err := OptionalBoolQuery(c, "flag")
	require.NoError(t, err)
	require.NotNil(t, flag)
	assert.True(t, *flag)

	absent, err := OptionalBoolQuery(c, "absent")
	require.NoError(t, err)
	assert.Nil(t, absent)

	_, err = OptionalBoolQuery(c, "bad")
	assert.Error(t, err)
}
