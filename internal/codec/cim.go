package codec

import (
	"strconv"

	"github.com/beevik/etree"
	"github.com/cassiomorais/edi-gateway/internal/domain/actor"
	"github.com/cassiomorais/edi-gateway/internal/domain/message"
	json "github.com/goccy/go-json"
)

const xsiNamespace = "http://www.w3.org/2001/XMLSchema-instance"

// cimDocument identifies the schema of one CIM document type.
type cimDocument struct {
	name string
	area string
}

func (d cimDocument) root() string {
	return d.name + "_MarketDocument"
}

func (d cimDocument) namespace() string {
	return "urn:ediel.org:" + d.area + ":" + lower(d.name) + ":0:1"
}

func (d cimDocument) schemaLocation() string {
	return d.namespace() + " urn-ediel-org-" + d.area + "-" + lower(d.name) + "-0-1.xsd"
}

var cimDocuments = map[message.DocumentType]cimDocument{
	message.NotifyAggregatedMeasureData:        {name: "NotifyAggregatedMeasureData", area: "measure"},
	message.NotifyValidatedMeasureData:         {name: "NotifyValidatedMeasureData", area: "measure"},
	message.NotifyWholesaleServices:            {name: "NotifyWholesaleServices", area: "wholesale"},
	message.RejectRequestAggregatedMeasureData: {name: "RejectRequestAggregatedMeasureData", area: "measure"},
	message.RejectRequestWholesaleSettlement:   {name: "RejectRequestWholesaleSettlement", area: "wholesale"},
}

// cimBody writes the Series element of one record.
type cimBody func(rec Record) (*node, error)

var cimBodies = map[message.DocumentType]cimBody{
	message.NotifyAggregatedMeasureData:        aggregatedMeasureSeries,
	message.NotifyValidatedMeasureData:         validatedMeasureSeries,
	message.NotifyWholesaleServices:            wholesaleServicesSeries,
	message.RejectRequestAggregatedMeasureData: rejectedRequestSeries,
	message.RejectRequestWholesaleSettlement:   rejectedRequestSeries,
}

func cimXMLEncoder(d cimDocument, body cimBody) EncodeFunc {
	return func(h Header, records []Record) ([]byte, error) {
		series, err := writeSeries(body, records)
		if err != nil {
			return nil, err
		}

		doc := etree.NewDocument()
		doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
		root := doc.CreateElement("cim:" + d.root())
		root.CreateAttr("xmlns:xsi", xsiNamespace)
		root.CreateAttr("xmlns:cim", d.namespace())
		root.CreateAttr("xsi:schemaLocation", d.schemaLocation())

		for _, n := range cimHeader(h) {
			n.writeXML(root, "cim")
		}
		for _, s := range series {
			s.writeXML(root, "cim")
		}
		return doc.WriteToBytes()
	}
}

func cimJSONEncoder(d cimDocument, body cimBody) EncodeFunc {
	return func(h Header, records []Record) ([]byte, error) {
		series, err := writeSeries(body, records)
		if err != nil {
			return nil, err
		}

		root := newNode(d.root())
		for _, n := range cimHeader(h) {
			root.add(n)
		}
		for _, s := range series {
			root.add(s)
		}
		return json.Marshal(map[string]any{d.root(): root.jsonValue()})
	}
}

func writeSeries(body cimBody, records []Record) ([]*node, error) {
	series := make([]*node, 0, len(records))
	for _, rec := range records {
		s, err := body(rec)
		if err != nil {
			return nil, err
		}
		series = append(series, s)
	}
	return series, nil
}

func cimHeader(h Header) []*node {
	doc := newNode("header")
	doc.text("mRID", h.MessageID)
	doc.code("type", h.DocumentType.Code())
	doc.code("process.processType", h.BusinessReason.Code())
	doc.code("businessSector.type", businessSectorElectricity)
	writeParty(doc, "sender_MarketParticipant", h.Sender)
	writeParty(doc, "receiver_MarketParticipant", h.Receiver)
	doc.text("createdDateTime", formatCreated(h.CreatedAt))
	if h.ReasonCode != "" {
		doc.code("reason.code", h.ReasonCode)
	}
	return doc.children
}

func writeParty(n *node, prefix string, a actor.Actor) {
	n.scheme(prefix+".mRID", a.Number.Scheme(), string(a.Number))
	n.code(prefix+".marketRole.type", a.Role.Code())
}

func newSeries() *node {
	return &node{name: "Series", repeated: true}
}

func aggregatedMeasureSeries(rec Record) (*node, error) {
	s, err := decodeRecord[AggregatedMeasureSeries](rec)
	if err != nil {
		return nil, err
	}
	m := codeMapper{messageID: rec.MessageID}

	n := newSeries()
	n.text("mRID", s.TransactionID)
	n.text("version", strconv.FormatInt(s.CalculationResultVersion, 10))
	if s.SettlementVersion != nil {
		n.code("settlement_Series.version", *s.SettlementVersion)
	}
	if s.OriginalTransactionIDReference != nil {
		n.text("originalTransactionIDReference_Series.mRID", *s.OriginalTransactionIDReference)
	}
	n.code("marketEvaluationPoint.type", m.code(meteringPointTypeCodes, string(s.MeteringPointType)))
	if s.SettlementMethod != nil {
		n.code("marketEvaluationPoint.settlementMethod", m.code(settlementMethodCodes, string(*s.SettlementMethod)))
	}
	n.scheme("meteringGridArea_Domain.mRID", gridAreaCodingScheme, s.GridAreaCode)
	if s.EnergySupplierNumber != nil {
		writeMarketParticipant(n, "energySupplier_MarketParticipant.mRID", *s.EnergySupplierNumber)
	}
	if s.BalanceResponsibleNumber != nil {
		writeMarketParticipant(n, "balanceResponsibleParty_MarketParticipant.mRID", *s.BalanceResponsibleNumber)
	}
	n.text("product", productEnergyActive)
	n.code("quantity_Measure_Unit.name", m.code(cimUnitCodes, string(s.MeasureUnit)))
	writeCIMPeriod(n, &m, s.Resolution, s.Period, s.Points)

	return n, m.err
}

func validatedMeasureSeries(rec Record) (*node, error) {
	s, err := decodeRecord[ValidatedMeasureSeries](rec)
	if err != nil {
		return nil, err
	}
	m := codeMapper{messageID: rec.MessageID}

	product := s.Product
	if product == "" {
		product = productEnergyActive
	}

	n := newSeries()
	n.text("mRID", s.TransactionID)
	if s.OriginalTransactionIDReference != nil {
		n.text("originalTransactionIDReference_Series.mRID", *s.OriginalTransactionIDReference)
	}
	n.scheme("marketEvaluationPoint.mRID", actor.SchemeGLN, s.MeteringPointID)
	n.code("marketEvaluationPoint.type", m.code(meteringPointTypeCodes, string(s.MeteringPointType)))
	if !s.RegistrationDateTime.IsZero() {
		n.text("registration_DateAndOrTime.dateTime", formatCreated(s.RegistrationDateTime))
	}
	n.text("product", product)
	n.code("measure_Unit.name", m.code(cimUnitCodes, string(s.MeasureUnit)))
	writeCIMPeriod(n, &m, s.Resolution, s.Period, s.Points)

	return n, m.err
}

func wholesaleServicesSeries(rec Record) (*node, error) {
	s, err := decodeRecord[WholesaleServicesSeries](rec)
	if err != nil {
		return nil, err
	}
	m := codeMapper{messageID: rec.MessageID}

	n := newSeries()
	n.text("mRID", s.TransactionID)
	n.text("version", strconv.FormatInt(s.CalculationVersion, 10))
	if s.OriginalTransactionIDReference != nil {
		n.text("originalTransactionIDReference_Series.mRID", *s.OriginalTransactionIDReference)
	}
	if s.ChargeType != nil {
		n.code("chargeType.type", m.code(chargeTypeCodes, string(*s.ChargeType)))
	}
	if s.ChargeCode != nil {
		n.text("chargeType.mRID", *s.ChargeCode)
	}
	if s.ChargeOwnerNumber != nil {
		writeMarketParticipant(n, "chargeType.chargeTypeOwner_MarketParticipant.mRID", *s.ChargeOwnerNumber)
	}
	n.scheme("meteringGridArea_Domain.mRID", gridAreaCodingScheme, s.GridAreaCode)
	writeMarketParticipant(n, "energySupplier_MarketParticipant.mRID", s.EnergySupplierNumber)
	if s.MeteringPointType != nil {
		n.code("marketEvaluationPoint.type", m.code(meteringPointTypeCodes, string(*s.MeteringPointType)))
	}
	if s.SettlementMethod != nil {
		n.code("marketEvaluationPoint.settlementMethod", m.code(settlementMethodCodes, string(*s.SettlementMethod)))
	}
	n.text("product", productEnergyActive)
	n.code("quantity_Measure_Unit.name", m.code(cimUnitCodes, string(s.QuantityUnit)))
	if s.PriceMeasureUnit != nil {
		n.code("price_Measure_Unit.name", m.code(cimUnitCodes, string(*s.PriceMeasureUnit)))
	}
	n.code("currency_Unit.name", s.currency())

	period := n.group("Period")
	period.text("resolution", m.code(resolutionCodes, string(s.Resolution)))
	writeTimeInterval(period, s.Period)
	for _, p := range s.Points {
		pt := period.item("Point")
		pt.codedNumber("position", strconv.Itoa(p.Position))
		if p.Quantity != nil {
			pt.number("energySum_Quantity.quantity", formatQuantity(*p.Quantity))
		}
		if p.Quality != nil {
			pt.code("energySum_Quantity.quality", m.code(cimQualityCodes, string(*p.Quality)))
		}
		if p.Price != nil {
			pt.number("price.amount", formatPrice(*p.Price))
		}
		if p.Amount != nil {
			pt.number("energySum_Quantity.amount", formatAmount(*p.Amount))
		}
	}

	return n, m.err
}

func rejectedRequestSeries(rec Record) (*node, error) {
	r, err := decodeRecord[RejectedRequest](rec)
	if err != nil {
		return nil, err
	}

	n := newSeries()
	n.text("mRID", r.TransactionID)
	n.text("originalTransactionIDReference_Series.mRID", r.OriginalTransactionIDReference)
	for _, reason := range r.Reasons {
		item := n.item("Reason")
		item.code("code", reason.ErrorCode)
		item.text("text", reason.ErrorMessage)
	}
	return n, nil
}

func writeMarketParticipant(n *node, name, number string) {
	n.scheme(name, actor.Number(number).Scheme(), number)
}

func writeTimeInterval(n *node, p Period) {
	ti := n.group("timeInterval")
	ti.code("start", formatPeriod(p.Start))
	ti.code("end", formatPeriod(p.End))
}

func writeCIMPeriod(n *node, m *codeMapper, res Resolution, period Period, points []Point) {
	p := n.group("Period")
	p.text("resolution", m.code(resolutionCodes, string(res)))
	writeTimeInterval(p, period)
	for _, point := range points {
		pt := p.item("Point")
		pt.codedNumber("position", strconv.Itoa(point.Position))
		if point.Quantity != nil {
			pt.number("quantity", formatQuantity(*point.Quantity))
		}
		if point.Quality != "" {
			pt.code("quality", m.code(cimQualityCodes, string(point.Quality)))
		}
	}
}
