package codec

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Record is one message's serialized market activity record.
type Record struct {
	MessageID uuid.UUID
	Data      []byte
}

type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (p Period) validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return fmt.Errorf("period start and end are required")
	}
	if !p.End.After(p.Start) {
		return fmt.Errorf("period end %s is not after start %s", p.End, p.Start)
	}
	return nil
}

type Point struct {
	Position int              `json:"position"`
	Quantity *decimal.Decimal `json:"quantity,omitempty"`
	Quality  Quality          `json:"quality"`
}

// AggregatedMeasureSeries is the record of NotifyAggregatedMeasureData.
type AggregatedMeasureSeries struct {
	TransactionID                  string            `json:"transactionId"`
	GridAreaCode                   string            `json:"gridAreaCode"`
	MeteringPointType              MeteringPointType `json:"meteringPointType"`
	SettlementMethod               *SettlementMethod `json:"settlementMethod,omitempty"`
	SettlementVersion              *string           `json:"settlementVersion,omitempty"`
	EnergySupplierNumber           *string           `json:"energySupplierNumber,omitempty"`
	BalanceResponsibleNumber       *string           `json:"balanceResponsibleNumber,omitempty"`
	MeasureUnit                    MeasurementUnit   `json:"measureUnit"`
	Resolution                     Resolution        `json:"resolution"`
	Period                         Period            `json:"period"`
	CalculationResultVersion       int64             `json:"calculationResultVersion"`
	OriginalTransactionIDReference *string           `json:"originalTransactionIdReference,omitempty"`
	Points                         []Point           `json:"points"`
}

func (s AggregatedMeasureSeries) validate() error {
	if s.TransactionID == "" {
		return fmt.Errorf("transactionId is required")
	}
	if s.GridAreaCode == "" {
		return fmt.Errorf("gridAreaCode is required")
	}
	return s.Period.validate()
}

// ValidatedMeasureSeries is the record of NotifyValidatedMeasureData.
type ValidatedMeasureSeries struct {
	TransactionID                  string            `json:"transactionId"`
	MeteringPointID                string            `json:"meteringPointId"`
	MeteringPointType              MeteringPointType `json:"meteringPointType"`
	OriginalTransactionIDReference *string           `json:"originalTransactionIdReference,omitempty"`
	Product                        string            `json:"product,omitempty"`
	MeasureUnit                    MeasurementUnit   `json:"measureUnit"`
	RegistrationDateTime           time.Time         `json:"registrationDateTime"`
	Resolution                     Resolution        `json:"resolution"`
	Period                         Period            `json:"period"`
	Points                         []Point           `json:"points"`
}

func (s ValidatedMeasureSeries) validate() error {
	if s.TransactionID == "" {
		return fmt.Errorf("transactionId is required")
	}
	if s.MeteringPointID == "" {
		return fmt.Errorf("meteringPointId is required")
	}
	return s.Period.validate()
}

type WholesalePoint struct {
	Position int              `json:"position"`
	Quantity *decimal.Decimal `json:"quantity,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
	Quality  *Quality         `json:"quality,omitempty"`
}

// WholesaleServicesSeries is the record of NotifyWholesaleServices.
type WholesaleServicesSeries struct {
	TransactionID                  string             `json:"transactionId"`
	CalculationVersion             int64              `json:"calculationVersion"`
	GridAreaCode                   string             `json:"gridAreaCode"`
	ChargeCode                     *string            `json:"chargeCode,omitempty"`
	ChargeType                     *ChargeType        `json:"chargeType,omitempty"`
	ChargeOwnerNumber              *string            `json:"chargeOwnerNumber,omitempty"`
	EnergySupplierNumber           string             `json:"energySupplierNumber"`
	MeteringPointType              *MeteringPointType `json:"meteringPointType,omitempty"`
	SettlementMethod               *SettlementMethod  `json:"settlementMethod,omitempty"`
	QuantityUnit                   MeasurementUnit    `json:"quantityUnit"`
	PriceMeasureUnit               *MeasurementUnit   `json:"priceMeasureUnit,omitempty"`
	Currency                       string             `json:"currency,omitempty"`
	Resolution                     Resolution         `json:"resolution"`
	Period                         Period             `json:"period"`
	OriginalTransactionIDReference *string            `json:"originalTransactionIdReference,omitempty"`
	Points                         []WholesalePoint   `json:"points"`
}

func (s WholesaleServicesSeries) validate() error {
	if s.TransactionID == "" {
		return fmt.Errorf("transactionId is required")
	}
	if s.GridAreaCode == "" {
		return fmt.Errorf("gridAreaCode is required")
	}
	if s.EnergySupplierNumber == "" {
		return fmt.Errorf("energySupplierNumber is required")
	}
	return s.Period.validate()
}

func (s WholesaleServicesSeries) currency() string {
	if s.Currency == "" {
		return defaultCurrency
	}
	return s.Currency
}

type RejectReason struct {
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// RejectedRequest is the record of the reject document types.
type RejectedRequest struct {
	TransactionID                  string         `json:"transactionId"`
	OriginalTransactionIDReference string         `json:"originalTransactionIdReference"`
	Reasons                        []RejectReason `json:"reasons"`
}

func (r RejectedRequest) validate() error {
	if r.TransactionID == "" {
		return fmt.Errorf("transactionId is required")
	}
	if r.OriginalTransactionIDReference == "" {
		return fmt.Errorf("originalTransactionIdReference is required")
	}
	if len(r.Reasons) == 0 {
		return fmt.Errorf("at least one reason is required")
	}
	return nil
}

type validatable interface {
	validate() error
}

// decodeRecord parses and validates a record. Failures name the message.
func decodeRecord[T validatable](rec Record) (T, error) {
	var v T
	if err := json.Unmarshal(rec.Data, &v); err != nil {
		return v, &RecordEncodingError{MessageID: rec.MessageID, Err: err}
	}
	if err := v.validate(); err != nil {
		return v, &RecordEncodingError{MessageID: rec.MessageID, Err: err}
	}
	return v, nil
}
