package document_test

import (
	"testing"

	"github.com/cassiomorais/edi-gateway/internal/domain/document"
	"github.com/cassiomorais/edi-gateway/internal/domain/errors"
	"github.com/cassiomorais/edi-gateway/internal/domain/message"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	bundleID := uuid.New()
	doc, err := document.New(bundleID, message.FormatCIMXML, "M1", []byte("<x/>"))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, doc.ID)
	assert.Equal(t, bundleID, doc.BundleID)
	assert.Equal(t, "M1", doc.MessageID)
	assert.Nil(t, doc.BlobRef)
	assert.Equal(t, bundleID.String()+"/CIM-XML/"+doc.ID.String(), doc.BlobName())
}

func TestNew_Invalid(t *testing.T) {
	_, err := document.New(uuid.New(), "PDF", "M1", nil)
	assert.ErrorIs(t, err, errors.ErrValidationFailed)

	_, err = document.New(uuid.New(), message.FormatEbix, "", nil)
	assert.ErrorIs(t, err, errors.ErrValidationFailed)
}
