package codec

import (
	"strconv"

	"github.com/beevik/etree"
	"github.com/cassiomorais/edi-gateway/internal/domain/actor"
	"github.com/cassiomorais/edi-gateway/internal/domain/message"
)

const (
	ebixNamespace = "urn:www:datahub:dk:b2b:v01"

	agencyUNCEFACT = "6"
	agencyGS1      = "9"
	agencyDK       = "260"
	agencyEIC      = "305"
)

// ebixDocuments holds the root element names. Reject documents have no ebIX form.
var ebixDocuments = map[message.DocumentType]string{
	message.NotifyAggregatedMeasureData: "DK_AggregatedMeteredDataTimeSeries",
	message.NotifyValidatedMeasureData:  "DK_MeteredDataTimeSeries",
	message.NotifyWholesaleServices:     "DK_NotifyAggregatedWholesaleServices",
}

var ebixBodies = map[message.DocumentType]cimBody{
	message.NotifyAggregatedMeasureData: ebixAggregatedSeries,
	message.NotifyValidatedMeasureData:  ebixValidatedSeries,
	message.NotifyWholesaleServices:     ebixWholesaleSeries,
}

func ebixEncoder(rootName string, body cimBody) EncodeFunc {
	return func(h Header, records []Record) ([]byte, error) {
		payloads, err := writeSeries(body, records)
		if err != nil {
			return nil, err
		}

		doc := etree.NewDocument()
		doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
		root := doc.CreateElement("ns0:" + rootName)
		root.CreateAttr("xmlns:ns0", ebixNamespace)

		ebixHeader(h).writeXML(root, "ns0")
		ebixContext(h).writeXML(root, "ns0")
		for _, p := range payloads {
			p.writeXML(root, "ns0")
		}
		return doc.WriteToBytes()
	}
}

func ebixHeader(h Header) *node {
	n := newNode("HeaderEnergyDocument")
	n.text("Identification", h.MessageID)
	n.text("DocumentType", h.DocumentType.Code()).withAttr("listAgencyIdentifier", agencyDK)
	n.text("Creation", formatCreated(h.CreatedAt))
	writeEnergyParty(n, "SenderEnergyParty", string(h.Sender.Number))
	writeEnergyParty(n, "RecipientEnergyParty", string(h.Receiver.Number))
	return n
}

func ebixContext(h Header) *node {
	n := newNode("ProcessEnergyContext")
	n.text("EnergyBusinessProcess", h.BusinessReason.Code()).withAttr("listAgencyIdentifier", agencyDK)
	n.text("EnergyBusinessProcessRole", h.Receiver.Role.Code()).withAttr("listAgencyIdentifier", agencyDK)
	n.text("EnergyIndustryClassification", businessSectorElectricity).withAttr("listAgencyIdentifier", agencyUNCEFACT)
	return n
}

func writeEnergyParty(n *node, name, number string) {
	scheme := agencyGS1
	if actor.Number(number).Scheme() == actor.SchemeEIC {
		scheme = agencyEIC
	}
	n.group(name).text("Identification", number).withAttr("schemeAgencyIdentifier", scheme)
}

func newPayload(transactionID string) *node {
	n := &node{name: "PayloadEnergyTimeSeries", repeated: true}
	n.text("Identification", transactionID)
	n.text("Function", "9").withAttr("listAgencyIdentifier", agencyUNCEFACT)
	return n
}

func writeEbixPeriod(n *node, m *codeMapper, res Resolution, p Period) {
	period := n.group("ObservationTimeSeriesPeriod")
	period.text("ResolutionDuration", m.code(resolutionCodes, string(res)))
	period.text("Start", formatPeriod(p.Start))
	period.text("End", formatPeriod(p.End))
}

func writeProduct(n *node, m *codeMapper, product string, unit MeasurementUnit) {
	pc := n.group("IncludedProductCharacteristic")
	pc.text("Identification", product).withAttr("schemeAgencyIdentifier", agencyGS1)
	pc.text("UnitType", m.code(ebixUnitCodes, string(unit))).withAttr("listAgencyIdentifier", agencyDK)
}

func writeObservations(n *node, m *codeMapper, points []Point) {
	for _, p := range points {
		obs := n.item("IntervalEnergyObservation")
		obs.text("Position", strconv.Itoa(p.Position))
		if p.Quantity == nil || p.Quality == Missing {
			obs.text("QuantityMissing", "true")
			continue
		}
		obs.text("EnergyQuantity", formatQuantity(*p.Quantity))
		if p.Quality != "" {
			obs.text("QuantityQuality", m.code(ebixQualityCodes, string(p.Quality))).withAttr("listAgencyIdentifier", agencyDK)
		}
	}
}

func ebixAggregatedSeries(rec Record) (*node, error) {
	s, err := decodeRecord[AggregatedMeasureSeries](rec)
	if err != nil {
		return nil, err
	}
	m := codeMapper{messageID: rec.MessageID}

	n := newPayload(s.TransactionID)
	if s.OriginalTransactionIDReference != nil {
		n.text("OriginalBusinessDocumentReference", *s.OriginalTransactionIDReference)
	}
	writeEbixPeriod(n, &m, s.Resolution, s.Period)
	writeProduct(n, &m, productEnergyActive, s.MeasureUnit)

	mp := n.group("DetailMeasurementMeteringPointCharacteristic")
	mp.text("TypeOfMeteringPoint", m.code(meteringPointTypeCodes, string(s.MeteringPointType))).withAttr("listAgencyIdentifier", agencyDK)
	if s.SettlementMethod != nil {
		mp.text("SettlementMethod", m.code(settlementMethodCodes, string(*s.SettlementMethod))).withAttr("listAgencyIdentifier", agencyDK)
	}

	n.group("MeteringGridAreaUsedDomainLocation").
		text("Identification", s.GridAreaCode).
		withAttr("schemeAgencyIdentifier", agencyDK).
		withAttr("schemeIdentifier", "DK")
	if s.EnergySupplierNumber != nil {
		writeEnergyParty(n, "BalanceSupplierEnergyParty", *s.EnergySupplierNumber)
	}
	if s.BalanceResponsibleNumber != nil {
		writeEnergyParty(n, "BalanceResponsibleEnergyParty", *s.BalanceResponsibleNumber)
	}
	writeObservations(n, &m, s.Points)

	return n, m.err
}

func ebixValidatedSeries(rec Record) (*node, error) {
	s, err := decodeRecord[ValidatedMeasureSeries](rec)
	if err != nil {
		return nil, err
	}
	m := codeMapper{messageID: rec.MessageID}

	product := s.Product
	if product == "" {
		product = productEnergyActive
	}

	n := newPayload(s.TransactionID)
	if s.OriginalTransactionIDReference != nil {
		n.text("OriginalBusinessDocumentReference", *s.OriginalTransactionIDReference)
	}
	writeEbixPeriod(n, &m, s.Resolution, s.Period)
	writeProduct(n, &m, product, s.MeasureUnit)
	n.group("DetailMeasurementMeteringPointCharacteristic").
		text("TypeOfMeteringPoint", m.code(meteringPointTypeCodes, string(s.MeteringPointType))).
		withAttr("listAgencyIdentifier", agencyDK)
	n.group("MeteringPointDomainLocation").
		text("Identification", s.MeteringPointID).
		withAttr("schemeAgencyIdentifier", agencyGS1)
	writeObservations(n, &m, s.Points)

	return n, m.err
}

func ebixWholesaleSeries(rec Record) (*node, error) {
	s, err := decodeRecord[WholesaleServicesSeries](rec)
	if err != nil {
		return nil, err
	}
	m := codeMapper{messageID: rec.MessageID}

	n := newPayload(s.TransactionID)
	writeEbixPeriod(n, &m, s.Resolution, s.Period)
	writeProduct(n, &m, productEnergyActive, s.QuantityUnit)

	charge := n.group("ChargeTypeCharacteristic")
	if s.ChargeCode != nil {
		charge.text("PartyChargeTypeID", *s.ChargeCode)
	}
	if s.ChargeType != nil {
		charge.text("ChargeType", m.code(chargeTypeCodes, string(*s.ChargeType))).withAttr("listAgencyIdentifier", agencyDK)
	}
	if s.ChargeOwnerNumber != nil {
		writeEnergyParty(charge, "ChargeTypeOwnerEnergyParty", *s.ChargeOwnerNumber)
	}

	n.group("MeteringGridAreaUsedDomainLocation").
		text("Identification", s.GridAreaCode).
		withAttr("schemeAgencyIdentifier", agencyDK).
		withAttr("schemeIdentifier", "DK")
	writeEnergyParty(n, "BalanceSupplierEnergyParty", s.EnergySupplierNumber)
	n.text("Currency", s.currency())

	for _, p := range s.Points {
		obs := n.item("IntervalEnergyObservation")
		obs.text("Position", strconv.Itoa(p.Position))
		if p.Quantity != nil {
			obs.text("EnergyQuantity", formatQuantity(*p.Quantity))
		}
		if p.Price != nil {
			obs.text("EnergyPrice", formatPrice(*p.Price))
		}
		if p.Amount != nil {
			obs.text("EnergySum", formatAmount(*p.Amount))
		}
		if p.Quality != nil && *p.Quality != Missing {
			obs.text("QuantityQuality", m.code(ebixQualityCodes, string(*p.Quality))).withAttr("listAgencyIdentifier", agencyDK)
		}
	}

	return n, m.err
}
