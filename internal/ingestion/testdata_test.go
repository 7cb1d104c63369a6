package ingestion

const ozonCatalog = `shop: Ozon
categories:
  - id: 1
    name: Смартфоны
  - id: 224
    name: Аксессуары
goods:
  - id: 4216292
    category: 1
    model: xiaomi/13-pro
    name: Xiaomi 13 pro
    price: 70000
    price_rrc: 75000
    quantity: 10
    parameters:
      "Диагональ (дюйм)": 6.73
      "Разрешение (пикс)": 3200x1440
      "Встроенная память (Гб)": 256
      "Цвет": черный
  - id: 4216313
    category: 224
    model: apple/airpods
    name: Наушники
    price: 12000
    price_rrc: 14000
    quantity: 5
    parameters:
      "Цвет": белый
`
