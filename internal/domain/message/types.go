package message

import (
	"strings"

	"github.com/cassiomorais/edi-gateway/internal/domain/errors"
)

// DocumentType names the kind of market document a message ends up in.
type DocumentType string

const (
	NotifyAggregatedMeasureData        DocumentType = "NotifyAggregatedMeasureData"
	NotifyWholesaleServices            DocumentType = "NotifyWholesaleServices"
	NotifyValidatedMeasureData         DocumentType = "NotifyValidatedMeasureData"
	RejectRequestAggregatedMeasureData DocumentType = "RejectRequestAggregatedMeasureData"
	RejectRequestWholesaleSettlement   DocumentType = "RejectRequestWholesaleSettlement"
)

var documentTypeCodes = map[DocumentType]string{
	NotifyAggregatedMeasureData:        "E31",
	NotifyWholesaleServices:            "E31",
	NotifyValidatedMeasureData:         "E66",
	RejectRequestAggregatedMeasureData: "ERR",
	RejectRequestWholesaleSettlement:   "ERR",
}

// AllDocumentTypes returns every known document type in a stable order.
func AllDocumentTypes() []DocumentType {
	return []DocumentType{
		NotifyAggregatedMeasureData,
		NotifyWholesaleServices,
		NotifyValidatedMeasureData,
		RejectRequestAggregatedMeasureData,
		RejectRequestWholesaleSettlement,
	}
}

// Code returns the market code written in the document header.
func (t DocumentType) Code() string {
	return documentTypeCodes[t]
}

func (t DocumentType) Validate() error {
	if _, ok := documentTypeCodes[t]; !ok {
		return errors.NewValidationError("document_type", "unknown document type "+string(t))
	}
	return nil
}

// IsReject reports whether the document answers a request with a rejection.
func (t DocumentType) IsReject() bool {
	return t == RejectRequestAggregatedMeasureData || t == RejectRequestWholesaleSettlement
}

// BusinessReason is the business process that produced a message.
type BusinessReason string

const (
	BalanceFixing          BusinessReason = "BalanceFixing"
	PreliminaryAggregation BusinessReason = "PreliminaryAggregation"
	WholesaleFixing        BusinessReason = "WholesaleFixing"
	Correction             BusinessReason = "Correction"
	PeriodicMetering       BusinessReason = "PeriodicMetering"
)

var businessReasonCodes = map[BusinessReason]string{
	BalanceFixing:          "D04",
	PreliminaryAggregation: "D03",
	WholesaleFixing:        "D05",
	Correction:             "D32",
	PeriodicMetering:       "E23",
}

func (r BusinessReason) Code() string {
	return businessReasonCodes[r]
}

func (r BusinessReason) Validate() error {
	if _, ok := businessReasonCodes[r]; !ok {
		return errors.NewValidationError("business_reason", "unknown business reason "+string(r))
	}
	return nil
}

// DocumentFormat is the wire encoding requested by a receiver.
type DocumentFormat string

const (
	FormatCIMXML  DocumentFormat = "CIM-XML"
	FormatCIMJSON DocumentFormat = "CIM-JSON"
	FormatEbix    DocumentFormat = "ebIX"
)

var formatContentTypes = map[DocumentFormat]string{
	FormatCIMXML:  "application/xml",
	FormatCIMJSON: "application/json",
	FormatEbix:    "application/ebix",
}

// ContentType returns the media type the format is served with.
func (f DocumentFormat) ContentType() string {
	return formatContentTypes[f]
}

func (f DocumentFormat) Validate() error {
	if _, ok := formatContentTypes[f]; !ok {
		return errors.NewValidationError("document_format", "unknown document format "+string(f))
	}
	return nil
}

// FormatFromContentType maps a Content-Type or Accept header value to a format.
// Parameters such as charset are ignored.
func FormatFromContentType(contentType string) (DocumentFormat, error) {
	mediaType, _, _ := strings.Cut(contentType, ";")
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	for f, ct := range formatContentTypes {
		if ct == mediaType {
			return f, nil
		}
	}
	return "", errors.ErrUnsupportedContentType
}

// AllFormats returns every known document format in a stable order.
func AllFormats() []DocumentFormat {
	return []DocumentFormat{FormatCIMXML, FormatCIMJSON, FormatEbix}
}
