package message

import (
	"sort"

	"github.com/cassiomorais/edi-gateway/internal/domain/errors"
)

// Category partitions a receiver's queue into independently pulled streams.
type Category string

const (
	CategoryAggregations Category = "aggregations"
	CategoryWholesale    Category = "wholesale"
	CategoryMeasureData  Category = "measuredata"
)

// Categories maps each category to the document types it delivers.
// The partitioning is business policy and is loaded from configuration.
type Categories map[Category][]DocumentType

func DefaultCategories() Categories {
	return Categories{
		CategoryAggregations: {NotifyAggregatedMeasureData, RejectRequestAggregatedMeasureData},
		CategoryWholesale:    {NotifyWholesaleServices, RejectRequestWholesaleSettlement},
		CategoryMeasureData:  {NotifyValidatedMeasureData},
	}
}

// NewCategories builds a category table from raw configuration values.
func NewCategories(raw map[string][]string) (Categories, error) {
	if len(raw) == 0 {
		return DefaultCategories(), nil
	}
	c := make(Categories, len(raw))
	for name, types := range raw {
		if len(types) == 0 {
			return nil, errors.NewValidationError("peek.categories."+name, "must list at least one document type")
		}
		dts := make([]DocumentType, 0, len(types))
		for _, t := range types {
			dt := DocumentType(t)
			if err := dt.Validate(); err != nil {
				return nil, err
			}
			dts = append(dts, dt)
		}
		c[Category(name)] = dts
	}
	return c, nil
}

// DocumentTypes resolves the document types of a category.
// An empty category selects every document type.
func (c Categories) DocumentTypes(category Category) ([]DocumentType, error) {
	if category == "" {
		return AllDocumentTypes(), nil
	}
	types, ok := c[category]
	if !ok {
		return nil, errors.ErrUnknownCategory
	}
	return types, nil
}

// Names returns the configured category names, sorted.
func (c Categories) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, string(name))
	}
	sort.Strings(names)
	return names
}
