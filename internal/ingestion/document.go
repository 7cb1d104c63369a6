package ingestion

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Document is a supplier price list.
type Document struct {
	Shop       string             `yaml:"shop"`
	Categories []DocumentCategory `yaml:"categories"`
	Goods      *[]DocumentGood    `yaml:"goods"`
}

type DocumentCategory struct {
	ID   *int64 `yaml:"id"`
	Name string `yaml:"name"`
}

type DocumentGood struct {
	ID         *int64                `yaml:"id"`
	Category   *int64                `yaml:"category"`
	Model      string                `yaml:"model"`
	Name       string                `yaml:"name"`
	Price      amount                `yaml:"price"`
	PriceRRC   amount                `yaml:"price_rrc"`
	Quantity   *int                  `yaml:"quantity"`
	Parameters *map[string]yaml.Node `yaml:"parameters"`
}

// ParameterValues returns parameter values as written, ordered by name.
// Values that are not scalars are reported instead of returned.
func (g DocumentGood) ParameterValues() ([]ParameterValue, error) {
	if g.Parameters == nil {
		return nil, nil
	}
	params := *g.Parameters
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	var errs error
	out := make([]ParameterValue, 0, len(names))
	for _, name := range names {
		node := params[name]
		if node.Kind != yaml.ScalarNode {
			errs = multierr.Append(errs, fmt.Errorf("%q must be a single value", name))
			continue
		}
		out = append(out, ParameterValue{Name: name, Value: node.Value})
	}
	return out, errs
}

type ParameterValue struct {
	Name  string
	Value string
}

// amount keeps the raw scalar so that bad prices are reported with the rest.
type amount struct {
	raw string
	set bool
}

func (a *amount) UnmarshalYAML(node *yaml.Node) error {
	a.raw = strings.TrimSpace(node.Value)
	a.set = node.Kind == yaml.ScalarNode && node.Tag != "!!null"
	return nil
}

func (a amount) wholeUnits() (int64, error) {
	d, err := decimal.NewFromString(a.raw)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", a.raw)
	}
	if d.IsNegative() || !d.IsInteger() {
		return 0, fmt.Errorf("amount %q must be a non-negative whole number", a.raw)
	}
	if !d.LessThanOrEqual(decimal.NewFromInt(maxAmount)) {
		return 0, fmt.Errorf("amount %q is too large", a.raw)
	}
	return d.IntPart(), nil
}

const maxAmount = int64(1) << 53

// Good is a validated document line.
type Good struct {
	ExternalID int64
	CategoryID int64
	Model      string
	Name       string
	Price      int64
	PriceRRC   int64
	Quantity   int
	Parameters []ParameterValue
}

// Catalog is a validated Document.
type Catalog struct {
	Shop       string
	Categories []DocumentCategory
	Goods      []Good
}

// Decode parses a YAML price list and reports every missing or malformed
// field in one error.
func Decode(data []byte) (*Catalog, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return doc.validate()
}

func (d Document) validate() (*Catalog, error) {
	var errs error
	shop := strings.TrimSpace(d.Shop)
	if shop == "" {
		errs = multierr.Append(errs, fmt.Errorf("shop is required"))
	}
	if len(d.Categories) == 0 {
		errs = multierr.Append(errs, fmt.Errorf("categories are required"))
	}

	listed := make(map[int64]struct{}, len(d.Categories))
	for i, category := range d.Categories {
		if category.ID == nil {
			errs = multierr.Append(errs, fmt.Errorf("categories[%d].id is required", i))
		} else {
			listed[*category.ID] = struct{}{}
		}
		if strings.TrimSpace(category.Name) == "" {
			errs = multierr.Append(errs, fmt.Errorf("categories[%d].name is required", i))
		}
	}

	if d.Goods == nil {
		errs = multierr.Append(errs, fmt.Errorf("goods is required"))
		return nil, errs
	}
	goods := make([]Good, 0, len(*d.Goods))
	for i, item := range *d.Goods {
		good, err := item.validate(i, listed)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		goods = append(goods, good)
	}
	if errs != nil {
		return nil, errs
	}
	return &Catalog{Shop: shop, Categories: d.Categories, Goods: goods}, nil
}

func (g DocumentGood) validate(i int, listed map[int64]struct{}) (Good, error) {
	var errs error
	field := func(name string) string { return fmt.Sprintf("goods[%d].%s", i, name) }

	if g.ID == nil {
		errs = multierr.Append(errs, fmt.Errorf("%s is required", field("id")))
	}
	if g.Category == nil {
		errs = multierr.Append(errs, fmt.Errorf("%s is required", field("category")))
	} else if _, ok := listed[*g.Category]; !ok {
		errs = multierr.Append(errs, fmt.Errorf("%s %d is not listed in categories", field("category"), *g.Category))
	}
	if strings.TrimSpace(g.Name) == "" {
		errs = multierr.Append(errs, fmt.Errorf("%s is required", field("name")))
	}
	if g.Quantity == nil {
		errs = multierr.Append(errs, fmt.Errorf("%s is required", field("quantity")))
	} else if *g.Quantity < 0 {
		errs = multierr.Append(errs, fmt.Errorf("%s must not be negative", field("quantity")))
	}

	prices := make([]int64, 2)
	for idx, p := range []struct {
		name  string
		value amount
	}{{"price", g.Price}, {"price_rrc", g.PriceRRC}} {
		if !p.value.set {
			errs = multierr.Append(errs, fmt.Errorf("%s is required", field(p.name)))
			continue
		}
		units, err := p.value.wholeUnits()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", field(p.name), err))
			continue
		}
		prices[idx] = units
	}

	var params []ParameterValue
	if g.Parameters == nil {
		errs = multierr.Append(errs, fmt.Errorf("%s is required", field("parameters")))
	} else {
		values, err := g.ParameterValues()
		for _, e := range multierr.Errors(err) {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", field("parameters"), e))
		}
		params = values
	}
	if errs != nil {
		return Good{}, errs
	}

	return Good{
		ExternalID: *g.ID,
		CategoryID: *g.Category,
		Model:      strings.TrimSpace(g.Model),
		Name:       strings.TrimSpace(g.Name),
		Price:      prices[0],
		PriceRRC:   prices[1],
		Quantity:   *g.Quantity,
		Parameters: params,
	}, nil
}
