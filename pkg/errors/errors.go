// Package errors defines the typed failures of the attribute and qualification engine.
// Every error converts to an httperror so route handlers can return them unchanged.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
)

// HTTPConvertible is implemented by every error in this package.
type HTTPConvertible interface {
	error
	ToHTTPError() *httperror.HTTPError
}

// ValidationError reports a malformed definition, rule or request. Nothing is persisted.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("field '%s': %s", e.Field, e.Message)
}

func (e *ValidationError) ToHTTPError() *httperror.HTTPError {
	return withMeta(httperror.NewHTTPError(http.StatusBadRequest, e.Error()), map[string]any{
		"error_type": "validation",
		"field":      e.Field,
	})
}

// ImmutableFieldError is returned when an update tries to change declared_type or slug.
type ImmutableFieldError struct {
	FieldDefinitionID string
	Property          string
}

func NewImmutableFieldError(fieldDefinitionID, property string) *ImmutableFieldError {
	return &ImmutableFieldError{FieldDefinitionID: fieldDefinitionID, Property: property}
}

func (e *ImmutableFieldError) Error() string {
	return fmt.Sprintf("field definition %s: %s cannot be changed after creation", e.FieldDefinitionID, e.Property)
}

func (e *ImmutableFieldError) ToHTTPError() *httperror.HTTPError {
	return withMeta(httperror.NewHTTPError(http.StatusConflict, e.Error()), map[string]any{
		"error_type":          "immutable_field",
		"field_definition_id": e.FieldDefinitionID,
		"property":            e.Property,
	})
}

// SystemFieldError is returned when a built-in field would be deleted or retyped.
type SystemFieldError struct {
	FieldDefinitionID string
	Operation         string
}

func NewSystemFieldError(fieldDefinitionID, operation string) *SystemFieldError {
	return &SystemFieldError{FieldDefinitionID: fieldDefinitionID, Operation: operation}
}

func (e *SystemFieldError) Error() string {
	return fmt.Sprintf("field definition %s is a system field and cannot be %s", e.FieldDefinitionID, e.Operation)
}

func (e *SystemFieldError) ToHTTPError() *httperror.HTTPError {
	return withMeta(httperror.NewHTTPError(http.StatusForbidden, e.Error()), map[string]any{
		"error_type":          "system_field",
		"field_definition_id": e.FieldDefinitionID,
		"operation":           e.Operation,
	})
}

// TypeCoercionError is returned when a raw value does not fit the declared type.
type TypeCoercionError struct {
	FieldDefinitionID string
	DeclaredType      string
	Input             string
	Reason            string
}

func NewTypeCoercionError(declaredType string, input any, format string, args ...any) *TypeCoercionError {
	return &TypeCoercionError{
		DeclaredType: declaredType,
		Input:        fmt.Sprintf("%v", input),
		Reason:       fmt.Sprintf(format, args...),
	}
}

// ForField returns a copy of the error attributed to a field definition.
func (e *TypeCoercionError) ForField(fieldDefinitionID string) *TypeCoercionError {
	clone := *e
	clone.FieldDefinitionID = fieldDefinitionID
	return &clone
}

func (e *TypeCoercionError) Error() string {
	msg := fmt.Sprintf("cannot coerce %q to %s: %s", e.Input, e.DeclaredType, e.Reason)
	if e.FieldDefinitionID != "" {
		return fmt.Sprintf("field definition %s: %s", e.FieldDefinitionID, msg)
	}
	return msg
}

func (e *TypeCoercionError) ToHTTPError() *httperror.HTTPError {
	return withMeta(httperror.NewHTTPError(http.StatusUnprocessableEntity, e.Error()), map[string]any{
		"error_type":          "type_coercion",
		"field_definition_id": e.FieldDefinitionID,
		"declared_type":       e.DeclaredType,
	})
}

// UnresolvedReferenceError marks a rule or value pointing at a missing or inactive definition.
// The evaluator never returns it; it is reported as a warning next to the outcome.
type UnresolvedReferenceError struct {
	RuleID            string
	FieldDefinitionID string
	FieldKey          string
	Reason            string
}

func (e *UnresolvedReferenceError) Error() string {
	target := e.FieldDefinitionID
	if target == "" {
		target = e.FieldKey
	}
	if e.RuleID != "" {
		return fmt.Sprintf("rule %s references unresolved field %s: %s", e.RuleID, target, e.Reason)
	}
	return fmt.Sprintf("unresolved field %s: %s", target, e.Reason)
}

func (e *UnresolvedReferenceError) ToHTTPError() *httperror.HTTPError {
	return withMeta(httperror.NewHTTPError(http.StatusNotFound, e.Error()), map[string]any{
		"error_type":          "unresolved_reference",
		"rule_id":             e.RuleID,
		"field_definition_id": e.FieldDefinitionID,
		"field_key":           e.FieldKey,
	})
}

// FieldErrors collects independent per-field failures of a multi-field save.
type FieldErrors struct {
	Errors map[string]error
}

func NewFieldErrors() *FieldErrors {
	return &FieldErrors{Errors: map[string]error{}}
}

func (f *FieldErrors) Add(fieldDefinitionID string, err error) {
	if err == nil {
		return
	}
	f.Errors[fieldDefinitionID] = err
}

func (f *FieldErrors) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Errors)
}

// ErrorOrNil returns nil when no field failed so callers can return it as a plain error.
func (f *FieldErrors) ErrorOrNil() error {
	if f.Len() == 0 {
		return nil
	}
	return f
}

func (f *FieldErrors) Error() string {
	ids := make([]string, 0, len(f.Errors))
	for id := range f.Errors {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, f.Errors[id].Error())
	}
	return fmt.Sprintf("%d field(s) failed: %s", len(ids), strings.Join(parts, "; "))
}

func (f *FieldErrors) ToHTTPError() *httperror.HTTPError {
	fields := make(map[string]any, len(f.Errors))
	for id, err := range f.Errors {
		fields[id] = err.Error()
	}
	return withMeta(httperror.NewHTTPError(http.StatusUnprocessableEntity, "one or more fields failed validation"), map[string]any{
		"error_type": "field_errors",
		"fields":     fields,
	})
}

// ToHTTPError converts any error from this package (possibly wrapped) into an httperror.
// Other errors are returned unchanged.
func ToHTTPError(err error) error {
	var convertible HTTPConvertible
	if stderrors.As(err, &convertible) {
		return convertible.ToHTTPError()
	}
	return err
}

// AsFieldErrors unwraps the per-field failures of a multi-field save.
func AsFieldErrors(err error) (*FieldErrors, bool) {
	var target *FieldErrors
	if stderrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

func IsValidationError(err error) bool {
	var target *ValidationError
	return stderrors.As(err, &target)
}

func IsImmutableFieldError(err error) bool {
	var target *ImmutableFieldError
	return stderrors.As(err, &target)
}

func IsSystemFieldError(err error) bool {
	var target *SystemFieldError
	return stderrors.As(err, &target)
}

func IsTypeCoercionError(err error) bool {
	var target *TypeCoercionError
	return stderrors.As(err, &target)
}

func IsUnresolvedReferenceError(err error) bool {
	var target *UnresolvedReferenceError
	return stderrors.As(err, &target)
}

func withMeta(he *httperror.HTTPError, meta map[string]any) *httperror.HTTPError {
	if he.Meta == nil {
		he.Meta = map[string]any{}
	}
	for k, v := range meta {
		he.Meta[k] = v
	}
	return he
}
