package models

import "time"

// StoredValue is the typed payload of one value slot. The concrete type is the
// discriminant and always maps to exactly one storage column. A nil StoredValue is "no value".
type StoredValue interface {
	Column() StorageColumn
	isStoredValue()
}

type TextValue string

type NumberValue float64

type DateValue time.Time

type BoolValue bool

type ListValue []string

func (TextValue) Column() StorageColumn   { return ColumnText }
func (NumberValue) Column() StorageColumn { return ColumnNumber }
func (DateValue) Column() StorageColumn   { return ColumnDate }
func (BoolValue) Column() StorageColumn   { return ColumnBoolean }
func (ListValue) Column() StorageColumn   { return ColumnJSON }

func (TextValue) isStoredValue()   {}
func (NumberValue) isStoredValue() {}
func (DateValue) isStoredValue()   {}
func (BoolValue) isStoredValue()   {}
func (ListValue) isStoredValue()   {}

func (d DateValue) Time() time.Time {
	return time.Time(d)
}
