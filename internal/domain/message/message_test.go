package message_test

import (
	"testing"

	"github.com/cassiomorais/edi-gateway/internal/domain/actor"
	"github.com/cassiomorais/edi-gateway/internal/domain/errors"
	"github.com/cassiomorais/edi-gateway/internal/domain/message"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validParams() message.Params {
	return message.Params{
		DocumentType:   message.NotifyAggregatedMeasureData,
		Receiver:       actor.Actor{Number: "5790001330583", Role: actor.RoleEnergySupplier},
		BusinessReason: message.BalanceFixing,
		Record:         []byte(`{"transactionId":"t1"}`),
	}
}

func TestNew_Valid(t *testing.T) {
	msg, err := message.New(validParams())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, msg.ID)
	assert.Nil(t, msg.AssignedBundleID)
	assert.Equal(t, 0, msg.BundlePosition)
	assert.False(t, msg.CreatedAt.IsZero())
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *message.Params)
		field  string
	}{
		{"unknown document type", func(p *message.Params) { p.DocumentType = "Bogus" }, "document_type"},
		{"unknown business reason", func(p *message.Params) { p.BusinessReason = "Bogus" }, "business_reason"},
		{"malformed receiver number", func(p *message.Params) { p.Receiver.Number = "42" }, "actor_number"},
		{"unknown receiver role", func(p *message.Params) { p.Receiver.Role = "Bogus" }, "actor_role"},
		{"empty record", func(p *message.Params) { p.Record = nil }, "record"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)
			_, err := message.New(p)
			var ve *errors.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestAssignTo_OnlyOnce(t *testing.T) {
	msg, err := message.New(validParams())
	require.NoError(t, err)

	first := uuid.New()
	require.NoError(t, msg.AssignTo(first, 1))
	assert.Equal(t, first, *msg.AssignedBundleID)
	assert.Equal(t, 1, msg.BundlePosition)

	err = msg.AssignTo(uuid.New(), 2)
	assert.ErrorIs(t, err, errors.ErrMessageAlreadyQueued)
	assert.Equal(t, first, *msg.AssignedBundleID)
}

func TestKey(t *testing.T) {
	a, _ := message.New(validParams())
	b, _ := message.New(validParams())
	assert.Equal(t, a.Key(), b.Key())

	p := validParams()
	p.BusinessReason = message.Correction
	c, _ := message.New(p)
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestDocumentType_Codes(t *testing.T) {
	assert.Equal(t, "E31", message.NotifyAggregatedMeasureData.Code())
	assert.Equal(t, "E66", message.NotifyValidatedMeasureData.Code())
	assert.Equal(t, "ERR", message.RejectRequestWholesaleSettlement.Code())
	assert.True(t, message.RejectRequestAggregatedMeasureData.IsReject())
	assert.False(t, message.NotifyWholesaleServices.IsReject())
}

func TestFormatFromContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        message.DocumentFormat
		wantErr     bool
	}{
		{"application/xml", message.FormatCIMXML, false},
		{"application/json; charset=utf-8", message.FormatCIMJSON, false},
		{"Application/EBIX", message.FormatEbix, false},
		{"text/plain", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			got, err := message.FormatFromContentType(tt.contentType)
			if tt.wantErr {
				assert.ErrorIs(t, err, errors.ErrUnsupportedContentType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCategories(t *testing.T) {
	c := message.DefaultCategories()

	types, err := c.DocumentTypes(message.CategoryMeasureData)
	require.NoError(t, err)
	assert.Equal(t, []message.DocumentType{message.NotifyValidatedMeasureData}, types)

	all, err := c.DocumentTypes("")
	require.NoError(t, err)
	assert.Len(t, all, 5)

	_, err = c.DocumentTypes("timeseries")
	assert.ErrorIs(t, err, errors.ErrUnknownCategory)

	assert.Equal(t, []string{"aggregations", "measuredata", "wholesale"}, c.Names())
}

func TestNewCategories(t *testing.T) {
	c, err := message.NewCategories(map[string][]string{
		"timeseries": {"NotifyValidatedMeasureData"},
	})
	require.NoError(t, err)
	types, err := c.DocumentTypes("timeseries")
	require.NoError(t, err)
	assert.Equal(t, []message.DocumentType{message.NotifyValidatedMeasureData}, types)

	_, err = message.NewCategories(map[string][]string{"x": {"Bogus"}})
	assert.Error(t, err)

	_, err = message.NewCategories(map[string][]string{"x": {}})
	assert.Error(t, err)

	def, err := message.NewCategories(nil)
	require.NoError(t, err)
	assert.Equal(t, message.DefaultCategories(), def)
}
