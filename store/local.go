package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	_ "modernc.org/sqlite" // SQLite driver
)

// LocalStore is the on-device persistent store for labels and orders.
//
// Reads degrade to empty results so the UI stays usable even with a
// corrupted index; open and write failures surface as ErrStorageUnavailable.
// Concurrent writers get last-write-wins at the sqlite layer, there is no
// extra locking above single-statement atomicity.
type LocalStore struct {
	db       *sql.DB
	path     string
	logger   *slog.Logger
	validate *validator.Validate
}

// Open opens (or creates) the local store at path. An empty path resolves to
// the XDG data directory.
func Open(path string, logger *slog.Logger) (*LocalStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dbPath, err := databasePath(path)
	if err != nil {
		return nil, &StoreError{Op: "Open", Err: fmt.Errorf("%w: %v", ErrStorageUnavailable, err)}
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, &StoreError{Op: "Open", Err: fmt.Errorf("%w: %v", ErrStorageUnavailable, err)}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, &StoreError{Op: "Open", Err: fmt.Errorf("%w: %v", ErrStorageUnavailable, err)}
	}

	s := &LocalStore{
		db:       db,
		path:     dbPath,
		logger:   logger,
		validate: validator.New(),
	}

	if err := s.initializeSchema(); err != nil {
		db.Close()
		return nil, &StoreError{Op: "Open", Err: fmt.Errorf("%w: %v", ErrStorageUnavailable, err)}
	}

	return s, nil
}

// databasePath resolves the sqlite file location.
// Priority: customPath > $XDG_DATA_HOME/scansync/scansync.db > ~/.local/share/scansync/scansync.db
func databasePath(customPath string) (string, error) {
	if customPath != "" {
		return customPath, nil
	}

	if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
		return filepath.Join(xdgDataHome, "scansync", "scansync.db"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".local", "share", "scansync", "scansync.db"), nil
}

func (s *LocalStore) initializeSchema() error {
	for _, pragma := range PragmaStatements() {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %q: %w", pragma, err)
		}
	}
	for _, stmt := range SchemaStatements() {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Path returns the sqlite file location in use.
func (s *LocalStore) Path() string {
	return s.path
}

// Close closes the underlying database.
func (s *LocalStore) Close() error {
	return s.db.Close()
}

// GetLabels returns all labels ordered by timestamp descending (newest
// first). It never fails: read errors are logged and yield an empty slice.
func (s *LocalStore) GetLabels() []LabelRecord {
	rows, err := s.db.Query(`
		SELECT id, reference, length, quantity, original_image, cropped_image,
		       box_size, packing_photo, notes, timestamp, created_by
		FROM labels
		ORDER BY timestamp DESC
	`)
	if err != nil {
		s.logger.Error("reading labels failed, returning empty set", "error", err)
		return []LabelRecord{}
	}
	defer rows.Close()

	labels := []LabelRecord{}
	for rows.Next() {
		rec, err := scanLabel(rows)
		if err != nil {
			s.logger.Error("scanning label row failed, returning empty set", "error", err)
			return []LabelRecord{}
		}
		labels = append(labels, rec)
	}

	if err := rows.Err(); err != nil {
		s.logger.Error("iterating label rows failed, returning empty set", "error", err)
		return []LabelRecord{}
	}

	return labels
}

// GetOrders returns all orders ordered by timestamp descending. Like
// GetLabels it never fails.
func (s *LocalStore) GetOrders() []OrderRecord {
	rows, err := s.db.Query(`
		SELECT id, client_name, client_number, order_number, date, notes,
		       products, original_image, status, timestamp, created_by
		FROM orders
		ORDER BY timestamp DESC
	`)
	if err != nil {
		s.logger.Error("reading orders failed, returning empty set", "error", err)
		return []OrderRecord{}
	}
	defer rows.Close()

	orders := []OrderRecord{}
	for rows.Next() {
		rec, err := scanOrder(rows)
		if err != nil {
			s.logger.Error("scanning order row failed, returning empty set", "error", err)
			return []OrderRecord{}
		}
		orders = append(orders, rec)
	}

	if err := rows.Err(); err != nil {
		s.logger.Error("iterating order rows failed, returning empty set", "error", err)
		return []OrderRecord{}
	}

	return orders
}

func scanLabel(rows *sql.Rows) (LabelRecord, error) {
	var rec LabelRecord
	var length, quantity, originalImage, croppedImage sql.NullString
	var boxSize, packingPhoto, notes, createdBy sql.NullString

	err := rows.Scan(
		&rec.ID,
		&rec.Reference,
		&length,
		&quantity,
		&originalImage,
		&croppedImage,
		&boxSize,
		&packingPhoto,
		&notes,
		&rec.Timestamp,
		&createdBy,
	)
	if err != nil {
		return rec, err
	}

	rec.Length = length.String
	rec.Quantity = quantity.String
	rec.OriginalImage = originalImage.String
	rec.CroppedImage = croppedImage.String
	rec.BoxSize = boxSize.String
	rec.PackingPhoto = packingPhoto.String
	rec.Notes = notes.String
	rec.CreatedBy = createdBy.String

	return rec, nil
}

func scanOrder(rows *sql.Rows) (OrderRecord, error) {
	var rec OrderRecord
	var clientName, clientNumber, date, notes sql.NullString
	var products, originalImage, status, createdBy sql.NullString

	err := rows.Scan(
		&rec.ID,
		&clientName,
		&clientNumber,
		&rec.OrderNumber,
		&date,
		&notes,
		&products,
		&originalImage,
		&status,
		&rec.Timestamp,
		&createdBy,
	)
	if err != nil {
		return rec, err
	}

	rec.ClientName = clientName.String
	rec.ClientNumber = clientNumber.String
	rec.Date = date.String
	rec.Notes = notes.String
	rec.OriginalImage = originalImage.String
	rec.Status = status.String
	rec.CreatedBy = createdBy.String

	if products.Valid && products.String != "" {
		if err := json.Unmarshal([]byte(products.String), &rec.Products); err != nil {
			return rec, fmt.Errorf("decoding product lines for order %s: %w", rec.ID, err)
		}
	}

	return rec, nil
}

// PutLabel inserts or replaces a label keyed by id. Idempotent.
func (s *LocalStore) PutLabel(rec LabelRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO labels (id, reference, length, quantity, original_image, cropped_image,
		                    box_size, packing_photo, notes, timestamp, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			reference = excluded.reference,
			length = excluded.length,
			quantity = excluded.quantity,
			original_image = excluded.original_image,
			cropped_image = excluded.cropped_image,
			box_size = excluded.box_size,
			packing_photo = excluded.packing_photo,
			notes = excluded.notes,
			timestamp = excluded.timestamp,
			created_by = excluded.created_by
	`,
		rec.ID, rec.Reference, rec.Length, rec.Quantity, rec.OriginalImage, rec.CroppedImage,
		rec.BoxSize, rec.PackingPhoto, rec.Notes, rec.Timestamp, rec.CreatedBy,
	)
	if err != nil {
		return &StoreError{Op: "PutLabel", Collection: CollectionLabels, ID: rec.ID,
			Err: fmt.Errorf("%w: %v", ErrStorageUnavailable, err)}
	}
	return nil
}

// PutOrder inserts or replaces an order keyed by id. Idempotent.
func (s *LocalStore) PutOrder(rec OrderRecord) error {
	products, err := json.Marshal(rec.Products)
	if err != nil {
		return &StoreError{Op: "PutOrder", Collection: CollectionOrders, ID: rec.ID, Err: err}
	}

	_, err = s.db.Exec(`
		INSERT INTO orders (id, client_name, client_number, order_number, date, notes,
		                    products, original_image, status, timestamp, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			client_name = excluded.client_name,
			client_number = excluded.client_number,
			order_number = excluded.order_number,
			date = excluded.date,
			notes = excluded.notes,
			products = excluded.products,
			original_image = excluded.original_image,
			status = excluded.status,
			timestamp = excluded.timestamp,
			created_by = excluded.created_by
	`,
		rec.ID, rec.ClientName, rec.ClientNumber, rec.OrderNumber, rec.Date, rec.Notes,
		string(products), rec.OriginalImage, rec.Status, rec.Timestamp, rec.CreatedBy,
	)
	if err != nil {
		return &StoreError{Op: "PutOrder", Collection: CollectionOrders, ID: rec.ID,
			Err: fmt.Errorf("%w: %v", ErrStorageUnavailable, err)}
	}
	return nil
}

// DeleteLabel removes a label by id. Deleting an absent id is a no-op.
func (s *LocalStore) DeleteLabel(id string) error {
	if _, err := s.db.Exec("DELETE FROM labels WHERE id = ?", id); err != nil {
		return &StoreError{Op: "DeleteLabel", Collection: CollectionLabels, ID: id,
			Err: fmt.Errorf("%w: %v", ErrStorageUnavailable, err)}
	}
	return nil
}

// DeleteOrder removes an order by id. Deleting an absent id is a no-op.
func (s *LocalStore) DeleteOrder(id string) error {
	if _, err := s.db.Exec("DELETE FROM orders WHERE id = ?", id); err != nil {
		return &StoreError{Op: "DeleteOrder", Collection: CollectionOrders, ID: id,
			Err: fmt.Errorf("%w: %v", ErrStorageUnavailable, err)}
	}
	return nil
}

// ExistsLabel reports whether a label with the given id is present.
func (s *LocalStore) ExistsLabel(id string) (bool, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(1) FROM labels WHERE id = ?", id).Scan(&n)
	if err != nil {
		return false, &StoreError{Op: "ExistsLabel", Collection: CollectionLabels, ID: id,
			Err: fmt.Errorf("%w: %v", ErrStorageUnavailable, err)}
	}
	return n > 0, nil
}

// ExistsOrder reports whether an order with the given id is present.
func (s *LocalStore) ExistsOrder(id string) (bool, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(1) FROM orders WHERE id = ?", id).Scan(&n)
	if err != nil {
		return false, &StoreError{Op: "ExistsOrder", Collection: CollectionOrders, ID: id,
			Err: fmt.Errorf("%w: %v", ErrStorageUnavailable, err)}
	}
	return n > 0, nil
}

// ClearLabels removes all labels. Irreversible, administrative use only.
func (s *LocalStore) ClearLabels() error {
	if _, err := s.db.Exec("DELETE FROM labels"); err != nil {
		return &StoreError{Op: "ClearLabels", Collection: CollectionLabels,
			Err: fmt.Errorf("%w: %v", ErrStorageUnavailable, err)}
	}
	return nil
}

// ClearOrders removes all orders. Irreversible, administrative use only.
func (s *LocalStore) ClearOrders() error {
	if _, err := s.db.Exec("DELETE FROM orders"); err != nil {
		return &StoreError{Op: "ClearOrders", Collection: CollectionOrders,
			Err: fmt.Errorf("%w: %v", ErrStorageUnavailable, err)}
	}
	return nil
}

// ClearAll empties both collections.
func (s *LocalStore) ClearAll() error {
	if err := s.ClearLabels(); err != nil {
		return err
	}
	return s.ClearOrders()
}

// FindLabelByReference returns the label with the given reference, or nil.
// When several share the reference the most recent one is returned. Uses
// idx_labels_reference, the full collection is never materialized.
func (s *LocalStore) FindLabelByReference(reference string) (*LabelRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, reference, length, quantity, original_image, cropped_image,
		       box_size, packing_photo, notes, timestamp, created_by
		FROM labels
		WHERE reference = ?
		ORDER BY timestamp DESC
		LIMIT 1
	`, reference)
	if err != nil {
		return nil, &StoreError{Op: "FindLabelByReference", Collection: CollectionLabels, Err: err}
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, &StoreError{Op: "FindLabelByReference", Collection: CollectionLabels, Err: err}
		}
		return nil, nil
	}

	rec, err := scanLabel(rows)
	if err != nil {
		return nil, &StoreError{Op: "FindLabelByReference", Collection: CollectionLabels, Err: err}
	}
	return &rec, nil
}

// FindOrderByNumber returns the order with the given order number (matched
// case-insensitively and trimmed), or nil. Uses idx_orders_order_number.
func (s *LocalStore) FindOrderByNumber(orderNumber string) (*OrderRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, client_name, client_number, order_number, date, notes,
		       products, original_image, status, timestamp, created_by
		FROM orders
		WHERE LOWER(TRIM(order_number)) = ?
		ORDER BY timestamp DESC
		LIMIT 1
	`, NormalizeOrderNumber(orderNumber))
	if err != nil {
		return nil, &StoreError{Op: "FindOrderByNumber", Collection: CollectionOrders, Err: err}
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, &StoreError{Op: "FindOrderByNumber", Collection: CollectionOrders, Err: err}
		}
		return nil, nil
	}

	rec, err := scanOrder(rows)
	if err != nil {
		return nil, &StoreError{Op: "FindOrderByNumber", Collection: CollectionOrders, Err: err}
	}
	return &rec, nil
}

// SaveLabel validates and stores a newly captured label. A missing id or
// timestamp is assigned. Saving a reference that already exists is rejected
// with DuplicateKeyError before anything is written.
func (s *LocalStore) SaveLabel(rec *LabelRecord) error {
	if err := s.validate.Struct(rec); err != nil {
		return &ValidationError{Field: "reference", Reason: "is required"}
	}

	existing, err := s.FindLabelByReference(rec.Reference)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != rec.ID {
		return &DuplicateKeyError{Collection: CollectionLabels, Key: rec.Reference}
	}

	if rec.ID == "" {
		rec.ID = NewRecordID()
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().UnixMilli()
	}

	return s.PutLabel(*rec)
}

// SaveOrder validates and stores a newly captured order, with the same
// duplicate stop keyed on the normalized order number.
func (s *LocalStore) SaveOrder(rec *OrderRecord) error {
	if err := s.validate.Struct(rec); err != nil {
		return &ValidationError{Field: "orderNumber", Reason: "is required"}
	}
	if NormalizeOrderNumber(rec.OrderNumber) == "" {
		return &ValidationError{Field: "orderNumber", Reason: "is required"}
	}

	existing, err := s.FindOrderByNumber(rec.OrderNumber)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != rec.ID {
		return &DuplicateKeyError{Collection: CollectionOrders, Key: rec.OrderNumber}
	}

	if rec.ID == "" {
		rec.ID = NewRecordID()
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().UnixMilli()
	}

	return s.PutOrder(*rec)
}

// UpdatePacking sets the packing metadata on an existing label.
func (s *LocalStore) UpdatePacking(id, boxSize, packingPhoto, notes string) error {
	res, err := s.db.Exec(`
		UPDATE labels SET box_size = ?, packing_photo = ?, notes = ?
		WHERE id = ?
	`, boxSize, packingPhoto, notes, id)
	if err != nil {
		return &StoreError{Op: "UpdatePacking", Collection: CollectionLabels, ID: id,
			Err: fmt.Errorf("%w: %v", ErrStorageUnavailable, err)}
	}

	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return &StoreError{Op: "UpdatePacking", Collection: CollectionLabels, ID: id,
			Err: sql.ErrNoRows}
	}
	return nil
}

// CountLabels returns the number of stored labels.
func (s *LocalStore) CountLabels() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(1) FROM labels").Scan(&n); err != nil {
		return 0, &StoreError{Op: "CountLabels", Collection: CollectionLabels, Err: err}
	}
	return n, nil
}

// CountOrders returns the number of stored orders.
func (s *LocalStore) CountOrders() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(1) FROM orders").Scan(&n); err != nil {
		return 0, &StoreError{Op: "CountOrders", Collection: CollectionOrders, Err: err}
	}
	return n, nil
}
