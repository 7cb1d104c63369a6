package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/marketplace-backend/pkg/migrate"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	fsys, err := migrate.Source("")
	if err != nil {
		t.Fatalf("embedded source: %v", err)
	}
	if err := migrate.Validate(fsys); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestOrdersMigrationEnforcesSingleBasket(t *testing.T) {
	content := readMigration(t, "*_create_orders_tables.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_orders_user_basket ON orders (user_id) WHERE state = 'basket'",
		"CONSTRAINT ux_order_items_order_product_info UNIQUE (order_id, product_info_id)",
		"CHECK (quantity >= 1)",
		"REFERENCES orders(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS order_items",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCatalogMigrationCascadesProductInfos(t *testing.T) {
	content := readMigration(t, "*_create_catalog_tables.sql")

	checks := []string{
		"CONSTRAINT ux_shops_name_user UNIQUE (name, user_id)",
		"CONSTRAINT ux_products_name_category UNIQUE (name, category_id)",
		"CONSTRAINT ux_parameters_name UNIQUE (name)",
		"shop_id bigint NOT NULL REFERENCES shops(id) ON DELETE CASCADE",
		"product_info_id bigint NOT NULL REFERENCES product_infos(id) ON DELETE CASCADE",
		"PRIMARY KEY (shop_id, category_id)",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration file found for %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
