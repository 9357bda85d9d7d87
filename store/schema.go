package store

// SQL statements for database schema creation.

// LabelsTableSQL creates the labels table. Images are stored inline as
// base64 data URIs, matching the wire representation.
const LabelsTableSQL = `
CREATE TABLE IF NOT EXISTS labels (
    id TEXT PRIMARY KEY,
    reference TEXT NOT NULL,
    length TEXT,
    quantity TEXT,
    original_image TEXT,
    cropped_image TEXT,
    box_size TEXT,
    packing_photo TEXT,
    notes TEXT,
    timestamp INTEGER NOT NULL,
    created_by TEXT
);
`

// OrdersTableSQL creates the orders table. Product lines are stored as a
// JSON array to keep line order.
const OrdersTableSQL = `
CREATE TABLE IF NOT EXISTS orders (
    id TEXT PRIMARY KEY,
    client_name TEXT,
    client_number TEXT,
    order_number TEXT NOT NULL,
    date TEXT,
    notes TEXT,
    products TEXT,
    original_image TEXT,
    status TEXT,
    timestamp INTEGER NOT NULL,
    created_by TEXT
);
`

// LabelsIndexesSQL creates indexes for recency ordering and duplicate lookup.
const LabelsIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_labels_timestamp ON labels(timestamp);
CREATE INDEX IF NOT EXISTS idx_labels_reference ON labels(reference);
`

// OrdersIndexesSQL creates indexes for recency ordering and duplicate lookup.
// The order number index is on the normalized form so lookups match the
// case-insensitive, trimmed comparison.
const OrdersIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_orders_timestamp ON orders(timestamp);
CREATE INDEX IF NOT EXISTS idx_orders_order_number ON orders(LOWER(TRIM(order_number)));
`

// PragmaStatements returns pragmas applied on every connection.
func PragmaStatements() []string {
	return []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	}
}

// SchemaStatements returns all DDL in execution order.
func SchemaStatements() []string {
	return []string{
		LabelsTableSQL,
		OrdersTableSQL,
		LabelsIndexesSQL,
		OrdersIndexesSQL,
	}
}
