package resolver

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	clcontext "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOverlays struct {
	overlays []models.FieldOverlay
	deleted  []string
}

func (f *fakeOverlays) List(_ context.Context, tenantID string, kind models.EntityKind) ([]models.FieldOverlay, error) {
	result := []models.FieldOverlay{}
	for _, overlay := range f.overlays {
		if overlay.TenantID == tenantID && overlay.EntityKind == kind {
			result = append(result, overlay)
		}
	}
	return result, nil
}

func (f *fakeOverlays) Upsert(_ context.Context, overlay models.FieldOverlay) (models.FieldOverlay, error) {
	f.overlays = append(f.overlays, overlay)
	return overlay, nil
}

func (f *fakeOverlays) Delete(_ context.Context, _ string, _ models.EntityKind, fieldKey string) error {
	f.deleted = append(f.deleted, fieldKey)
	return nil
}

type fakeDefinitions []models.FieldDefinition

func (f fakeDefinitions) List(_ context.Context, _ string, _ models.EntityKind) ([]models.FieldDefinition, error) {
	return f, nil
}

func ptr[T any](v T) *T {
	return &v
}

func testCatalog(t *testing.T) *Catalog {
	catalog, err := DefaultCatalog()
	require.NoError(t, err)
	return catalog
}

func TestDefaultCatalog(t *testing.T) {
	catalog := testCatalog(t)

	for _, kind := range models.EntityKinds {
		assert.NotEmpty(t, catalog.Fields(kind), kind)
	}

	name, ok := catalog.Lookup(models.EntityKindContact, "name")
	require.True(t, ok)
	assert.True(t, name.Mandatory)
	assert.True(t, name.Required)
	assert.Equal(t, "Nome", name.Label("pt-BR"))
	assert.Equal(t, "Name", name.Label("en-US"))
	assert.Equal(t, "Nome", name.Label("fr"))

	city, ok := catalog.Lookup(models.EntityKindContact, "city")
	require.True(t, ok)
	assert.Equal(t, "address.city", city.Path)
}

func TestParseCatalog_Errors(t *testing.T) {
	_, err := ParseCatalog([]byte("invoice:\n  - key: a\n    type: short_text\n"))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte("contato:\n  - key: a\n    type: money\n"))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte("contato:\n  - key: a\n    type: short_text\n  - key: a\n    type: short_text\n"))
	assert.Error(t, err)
}

func TestFieldSet_ThreeTierLookup(t *testing.T) {
	catalog := testCatalog(t)
	overlays := []models.FieldOverlay{
		{EntityKind: models.EntityKindContact, FieldKey: "email", Label: ptr("E-mail corporativo"), Required: ptr(true)},
		{EntityKind: models.EntityKindContact, FieldKey: "name", Label: ptr("Nome do lead"), Required: ptr(false)},
		{EntityKind: models.EntityKindCompany, FieldKey: "phone", Label: ptr("ignored")},
	}
	definitions := []models.FieldDefinition{
		{EntityKind: models.EntityKindContact, Slug: "email-domain", Name: "Email domain", Required: true, Placeholder: ptr("gmail.com"), Active: true},
		{EntityKind: models.EntityKindContact, Slug: "retired", Name: "Retired", Active: false},
	}
	set := NewFieldSet(catalog, models.EntityKindContact, "en-US", overlays, definitions)

	t.Run("tenant overlay wins for system keys", func(t *testing.T) {
		assert.Equal(t, "E-mail corporativo", set.LabelFor("email", "fallback"))
		assert.True(t, set.IsRequired("email", false))
	})

	t.Run("compiled default when not overlaid", func(t *testing.T) {
		assert.Equal(t, "Phone", set.LabelFor("phone", "fallback"))
		assert.False(t, set.IsRequired("phone", true))
		assert.Equal(t, "+1 415 555 0100", set.PlaceholderFor("phone", ""))
	})

	t.Run("fallback for unknown keys", func(t *testing.T) {
		assert.Equal(t, "fallback", set.LabelFor("custom_missing", "fallback"))
		assert.True(t, set.IsRequired("custom_missing", true))
		assert.Equal(t, "hint", set.PlaceholderFor("custom_missing", "hint"))
	})

	t.Run("mandatory system fields stay required", func(t *testing.T) {
		assert.Equal(t, "Nome do lead", set.LabelFor("name", ""))
		assert.True(t, set.IsRequired("name", false))
	})

	t.Run("custom keys use the definition", func(t *testing.T) {
		assert.Equal(t, "Email domain", set.LabelFor("custom_email-domain", ""))
		assert.True(t, set.IsRequired("custom_email-domain", false))
		assert.Equal(t, "gmail.com", set.PlaceholderFor("custom_email-domain", ""))
	})

	t.Run("inactive definitions do not resolve", func(t *testing.T) {
		assert.Equal(t, "custom_retired", set.LabelFor("custom_retired", "custom_retired"))
	})

	t.Run("keys list system then custom", func(t *testing.T) {
		keys := set.Keys()
		assert.Equal(t, "name", keys[0])
		assert.Equal(t, "custom_email-domain", keys[len(keys)-1])
	})
}

func TestResolver(t *testing.T) {
	overlays := &fakeOverlays{overlays: []models.FieldOverlay{
		{TenantID: "t1", EntityKind: models.EntityKindCompany, FieldKey: "industry", Label: ptr("Setor")},
	}}
	r := NewResolver(testCatalog(t), overlays, fakeDefinitions{}, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
	ctx := clcontext.SetLocale(context.Background(), "pt-BR")

	t.Run("for tenant", func(t *testing.T) {
		set, err := r.ForTenant(ctx, "t1", models.EntityKindCompany)
		require.NoError(t, err)
		assert.Equal(t, "Setor", set.LabelFor("industry", ""))
		assert.Equal(t, "Razão social", set.Resolve("name").Label)
		assert.True(t, set.Resolve("name").IsSystem)
	})

	t.Run("overlay only for system keys", func(t *testing.T) {
		_, err := r.SetOverlay(ctx, "t1", models.EntityKindCompany, "custom_x", models.SetFieldOverlayRequest{Label: ptr("x")})
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("mandatory fields cannot be made optional", func(t *testing.T) {
		_, err := r.SetOverlay(ctx, "t1", models.EntityKindCompany, "name", models.SetFieldOverlayRequest{Required: ptr(false)})
		assert.True(t, errors.IsSystemFieldError(err))
	})

	t.Run("set trims and clear deletes", func(t *testing.T) {
		overlay, err := r.SetOverlay(ctx, "t1", models.EntityKindCompany, "domain", models.SetFieldOverlayRequest{Label: ptr("  Website  "), Placeholder: ptr("  ")})
		require.NoError(t, err)
		assert.Equal(t, "Website", *overlay.Label)
		assert.Nil(t, overlay.Placeholder)

		require.NoError(t, r.ClearOverlay(ctx, "t1", models.EntityKindCompany, "domain"))
		assert.Equal(t, []string{"domain"}, overlays.deleted)
	})
}
