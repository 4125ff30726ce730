package codec

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// codeMapper looks up market codes for one record and keeps the first failure,
// so body writers can map every field and check the error once.
type codeMapper struct {
	messageID uuid.UUID
	err       error
}

func (m *codeMapper) code(t codeTable, value string) string {
	if m.err != nil {
		return ""
	}
	code, err := t.lookup(value)
	if err != nil {
		m.err = &RecordEncodingError{MessageID: m.messageID, Err: err}
		return ""
	}
	return code
}

const (
	quantityScale = 3
	priceScale    = 6
	amountScale   = 2
)

func formatQuantity(d decimal.Decimal) string {
	return d.StringFixed(quantityScale)
}

func formatPrice(d decimal.Decimal) string {
	return d.StringFixed(priceScale)
}

func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(amountScale)
}

func lower(s string) string {
	return strings.ToLower(s)
}
