package validation_test

import (
	"strings"
	"testing"

	"github.com/openledger/statetable/internal/errors"
	"github.com/openledger/statetable/internal/model"
	"github.com/openledger/statetable/internal/validation"
	"github.com/stretchr/testify/assert"
)

var info = &model.TableInfo{
	Name:   "accounts",
	Fields: []string{"name", "balance"},
}

func entryWith(fields map[string]string) *model.Entry {
	e := model.NewEntry()
	for name, value := range fields {
		e.SetField(name, value)
	}
	return e
}

func TestValidateKey(t *testing.T) {
	v := validation.NewValidator()

	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid", "alice", false},
		{"empty", "", true},
		{"control char", "a\x01b", true},
		{"too large", strings.Repeat("k", validation.MaxKeySize+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateKey(tt.key)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEntry(t *testing.T) {
	v := validation.NewValidator()

	assert.NoError(t, v.ValidateEntry(info, entryWith(map[string]string{"name": "x", "balance": "1"})))

	err := v.ValidateEntry(info, entryWith(map[string]string{"name": "x", "color": "red"}))
	assert.Error(t, err)
	assert.Equal(t, errors.ErrCodeUnknownField, errors.GetCode(err))
}

func TestValidateEntryIDExempt(t *testing.T) {
	v := validation.NewValidator()

	assert.NoError(t, v.ValidateEntry(info, entryWith(map[string]string{model.FieldID: "42", "name": "x"})),
		"the implicit id field bypasses the schema")
}

func TestValidateEntryStatusNotExempt(t *testing.T) {
	v := validation.NewValidator()

	err := v.ValidateEntry(info, entryWith(map[string]string{model.FieldStatus: "0"}))
	assert.Error(t, err, "the status field passes only when the schema lists it")

	withStatus := &model.TableInfo{Name: "accounts", Fields: []string{"name", model.FieldStatus}}
	assert.NoError(t, v.ValidateEntry(withStatus, entryWith(map[string]string{model.FieldStatus: "0"})))
}
