package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/openledger/statetable/internal/errors"
	"github.com/openledger/statetable/internal/model"
)

const (
	// Size limits
	MaxKeySize        = 1024 // 1 KB
	MaxFieldNameSize  = 256
	MaxFieldValueSize = 10 * 1024 * 1024 // 10 MB
)

// Validator validates table keys and entries against a schema
type Validator struct {
	maxKeySize        int
	maxFieldNameSize  int
	maxFieldValueSize int
}

// NewValidator creates a new validator with default limits
func NewValidator() *Validator {
	return &Validator{
		maxKeySize:        MaxKeySize,
		maxFieldNameSize:  MaxFieldNameSize,
		maxFieldValueSize: MaxFieldValueSize,
	}
}

// NewValidatorWithLimits creates a validator with custom limits
func NewValidatorWithLimits(maxKeySize, maxFieldNameSize, maxFieldValueSize int) *Validator {
	return &Validator{
		maxKeySize:        maxKeySize,
		maxFieldNameSize:  maxFieldNameSize,
		maxFieldValueSize: maxFieldValueSize,
	}
}

// ValidateKey validates a row key
func (v *Validator) ValidateKey(key string) error {
	if key == "" {
		return errors.InvalidKey(key, "key cannot be empty")
	}

	if len(key) > v.maxKeySize {
		return errors.InvalidKey(key, fmt.Sprintf("key exceeds maximum size of %d bytes", v.maxKeySize))
	}

	// Check for control characters and null bytes
	for _, r := range key {
		if unicode.IsControl(r) {
			return errors.InvalidKey(key, "key cannot contain control characters")
		}
	}
	if strings.Contains(key, "\x00") {
		return errors.InvalidKey(key, "key cannot contain null bytes")
	}

	return nil
}

// ValidateEntry validates every field of an entry against the table schema.
// The id field is attached by the execution layer and is exempt. The whole
// entry is checked before the caller applies any write.
func (v *Validator) ValidateEntry(info *model.TableInfo, entry *model.Entry) error {
	for _, f := range entry.Fields() {
		if f.Name == model.FieldID {
			continue
		}
		if err := v.validateFieldName(f.Name); err != nil {
			return err
		}
		if len(f.Value) > v.maxFieldValueSize {
			return errors.InvalidArgument(
				fmt.Sprintf("value of field %q exceeds maximum size of %d bytes", f.Name, v.maxFieldValueSize), nil)
		}
		if !fieldInSchema(info, f.Name) {
			return errors.UnknownField(info.Name, f.Name)
		}
	}
	return nil
}

// validateFieldName validates a single field name
func (v *Validator) validateFieldName(name string) error {
	if name == "" {
		return errors.InvalidArgument("field name cannot be empty", nil)
	}
	if len(name) > v.maxFieldNameSize {
		return errors.InvalidArgument(
			fmt.Sprintf("field name %q exceeds maximum size of %d bytes", name, v.maxFieldNameSize), nil)
	}
	if strings.Contains(name, "\x00") {
		return errors.InvalidArgument(fmt.Sprintf("field name %q contains null bytes", name), nil)
	}
	return nil
}

func fieldInSchema(info *model.TableInfo, name string) bool {
	for _, f := range info.Fields {
		if f == name {
			return true
		}
	}
	return false
}
