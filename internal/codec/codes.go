package codec

// Internal enumerations used in message records.
type (
	Resolution        string
	MeasurementUnit   string
	Quality           string
	MeteringPointType string
	SettlementMethod  string
	ChargeType        string
)

const (
	QuarterHourly Resolution = "QuarterHourly"
	Hourly        Resolution = "Hourly"
	Daily         Resolution = "Daily"
	Monthly       Resolution = "Monthly"

	KilowattHour MeasurementUnit = "KilowattHour"
	MegawattHour MeasurementUnit = "MegawattHour"
	Pieces       MeasurementUnit = "Pieces"
	Tonne        MeasurementUnit = "Tonne"

	Measured   Quality = "Measured"
	Estimated  Quality = "Estimated"
	Calculated Quality = "Calculated"
	Missing    Quality = "Missing"

	Consumption MeteringPointType = "Consumption"
	Production  MeteringPointType = "Production"
	Exchange    MeteringPointType = "Exchange"

	Flex        SettlementMethod = "Flex"
	NonProfiled SettlementMethod = "NonProfiled"

	Subscription ChargeType = "Subscription"
	Fee          ChargeType = "Fee"
	Tariff       ChargeType = "Tariff"
)

// codeTable maps an internal value to its market code. Lookups of unmapped
// values fail instead of falling back to a default.
type codeTable struct {
	name  string
	codes map[string]string
}

func (t codeTable) lookup(value string) (string, error) {
	code, ok := t.codes[value]
	if !ok {
		return "", &UnmappedCodeError{Table: t.name, Value: value}
	}
	return code, nil
}

var (
	resolutionCodes = codeTable{"resolution", map[string]string{
		string(QuarterHourly): "PT15M",
		string(Hourly):        "PT1H",
		string(Daily):         "P1D",
		string(Monthly):       "P1M",
	}}

	cimUnitCodes = codeTable{"measurement unit", map[string]string{
		string(KilowattHour): "KWH",
		string(MegawattHour): "MWH",
		string(Pieces):       "H87",
		string(Tonne):        "TNE",
	}}

	ebixUnitCodes = codeTable{"ebIX measurement unit", map[string]string{
		string(KilowattHour): "KWH",
		string(MegawattHour): "MWH",
		string(Pieces):       "H87",
	}}

	cimQualityCodes = codeTable{"quality", map[string]string{
		string(Measured):   "A04",
		string(Estimated):  "A03",
		string(Calculated): "A06",
		string(Missing):    "A02",
	}}

	// Missing quantities are written as QuantityMissing in ebIX.
	ebixQualityCodes = codeTable{"ebIX quality", map[string]string{
		string(Measured):   "E01",
		string(Estimated):  "56",
		string(Calculated): "D01",
	}}

	meteringPointTypeCodes = codeTable{"metering point type", map[string]string{
		string(Consumption): "E17",
		string(Production):  "E18",
		string(Exchange):    "E20",
	}}

	settlementMethodCodes = codeTable{"settlement method", map[string]string{
		string(Flex):        "D01",
		string(NonProfiled): "E02",
	}}

	chargeTypeCodes = codeTable{"charge type", map[string]string{
		string(Subscription): "D01",
		string(Fee):          "D02",
		string(Tariff):       "D03",
	}}
)

const (
	businessSectorElectricity = "23"
	reasonCodeRejected        = "A02"
	productEnergyActive       = "8716867000030"
	gridAreaCodingScheme      = "NDK"
	defaultCurrency           = "DKK"
)
