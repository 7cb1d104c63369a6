package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestDecodeValidCatalog(t *testing.T) {
	catalog, err := Decode([]byte(ozonCatalog))
	require.NoError(t, err)

	assert.Equal(t, "Ozon", catalog.Shop)
	require.Len(t, catalog.Categories, 2)
	require.Len(t, catalog.Goods, 2)

	phone := catalog.Goods[0]
	assert.Equal(t, int64(4216292), phone.ExternalID)
	assert.Equal(t, int64(1), phone.CategoryID)
	assert.Equal(t, int64(70000), phone.Price)
	assert.Equal(t, int64(75000), phone.PriceRRC)
	assert.Equal(t, 10, phone.Quantity)
	assert.Equal(t, []ParameterValue{
		{Name: "Встроенная память (Гб)", Value: "256"},
		{Name: "Диагональ (дюйм)", Value: "6.73"},
		{Name: "Разрешение (пикс)", Value: "3200x1440"},
		{Name: "Цвет", Value: "черный"},
	}, phone.Parameters)
}

func TestDecodeCollectsEveryProblem(t *testing.T) {
	doc := `categories:
  - name: Смартфоны
goods:
  - id: 1
    category: 7
    name: Phone
    price: -5
    price_rrc: 10.5
  - category: 1
    price: 100
    price_rrc: 100
    quantity: 1
`
	_, err := Decode([]byte(doc))
	require.Error(t, err)

	msgs := make([]string, 0)
	for _, e := range multierr.Errors(err) {
		msgs = append(msgs, e.Error())
	}
	assert.Contains(t, msgs, "shop is required")
	assert.Contains(t, msgs, "categories[0].id is required")
	assert.Contains(t, msgs, "goods[0].category 7 is not listed in categories")
	assert.Contains(t, msgs, "goods[0].quantity is required")
	assert.Contains(t, msgs, `goods[0].price: amount "-5" must be a non-negative whole number`)
	assert.Contains(t, msgs, `goods[0].price_rrc: amount "10.5" must be a non-negative whole number`)
	assert.Contains(t, msgs, "goods[1].id is required")
	assert.Contains(t, msgs, "goods[1].name is required")
}

func TestDecodeRejectsMalformedYAML(t *testing.T) {
	_, err := Decode([]byte("shop: [unterminated"))
	assert.Error(t, err)
}

func TestDecodeRequiresGoodsAndParameters(t *testing.T) {
	_, err := Decode([]byte("shop: Ozon\ncategories:\n  - id: 1\n    name: Смартфоны\n"))
	require.Error(t, err)
	assert.Equal(t, "goods is required", err.Error())

	doc := `shop: Ozon
categories:
  - id: 1
    name: Смартфоны
goods:
  - id: 10
    category: 1
    name: Phone
    price: 100
    price_rrc: 120
    quantity: 1
`
	_, err = Decode([]byte(doc))
	require.Error(t, err)
	assert.Equal(t, "goods[0].parameters is required", err.Error())

	catalog, err := Decode([]byte(doc + "    parameters: {}\n"))
	require.NoError(t, err)
	require.Len(t, catalog.Goods, 1)
	assert.Empty(t, catalog.Goods[0].Parameters)

	catalog, err = Decode([]byte("shop: Ozon\ncategories:\n  - id: 1\n    name: Смартфоны\ngoods: []\n"))
	require.NoError(t, err)
	assert.Empty(t, catalog.Goods)
}

func TestDecodeRejectsNestedParameterValues(t *testing.T) {
	doc := `shop: Ozon
categories:
  - id: 1
    name: Смартфоны
goods:
  - id: 10
    category: 1
    name: Phone
    price: 100
    price_rrc: 120
    quantity: 1
    parameters:
      "Цвет": [черный, белый]
      "Размер": {w: 1, h: 2}
      "Вес": 180
`
	_, err := Decode([]byte(doc))
	require.Error(t, err)

	msgs := make([]string, 0)
	for _, e := range multierr.Errors(err) {
		msgs = append(msgs, e.Error())
	}
	assert.ElementsMatch(t, []string{
		`goods[0].parameters: "Размер" must be a single value`,
		`goods[0].parameters: "Цвет" must be a single value`,
	}, msgs)
}
