package search

// ColumnKind drives which SQL operator a filter compiles to. The kind comes
// from this descriptor, never from the shape of the filter value.
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindNumeric
	KindBool
	KindTextArray
	KindJSONMap
)

// Column describes one filterable column of the products table.
type Column struct {
	Name string
	Kind ColumnKind
}

// Schema is the immutable descriptor of filterable columns. Column names
// from this allow-list are the only identifiers ever interpolated into SQL
// text; all filter values are bound as parameters.
type Schema struct {
	columns map[string]Column
}

func (s *Schema) Column(name string) (Column, bool) {
	c, ok := s.columns[name]
	return c, ok
}

var productSchema = &Schema{
	columns: map[string]Column{
		"product_type": {Name: "product_type", Kind: KindText},
		"vendor":       {Name: "vendor", Kind: KindText},
		"min_price":    {Name: "min_price", Kind: KindNumeric},
		"max_price":    {Name: "max_price", Kind: KindNumeric},
		"has_discount": {Name: "has_discount", Kind: KindBool},
		"tags":         {Name: "tags", Kind: KindTextArray},
		"options":      {Name: "options", Kind: KindJSONMap},
	},
}

// ProductSchema returns the descriptor for the products table.
func ProductSchema() *Schema {
	return productSchema
}
