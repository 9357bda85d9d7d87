package store

import (
	"strings"

	"github.com/google/uuid"
)

// Collection names as used by the remote document store.
const (
	CollectionLabels = "records"
	CollectionOrders = "orders"
)

// LabelRecord is a scanned industrial tag: product reference, measurements
// and the photos the fields were extracted from. Images are stored as
// base64 data URIs and may be large.
type LabelRecord struct {
	ID            string `json:"id"`
	Reference     string `json:"reference" validate:"required"`
	Length        string `json:"length"`
	Quantity      string `json:"quantity"`
	OriginalImage string `json:"originalImage,omitempty"`
	CroppedImage  string `json:"croppedImage,omitempty"`

	// Packing metadata, added after initial creation.
	BoxSize      string `json:"boxSize,omitempty"`
	PackingPhoto string `json:"packingPhoto,omitempty"`
	Notes        string `json:"notes,omitempty"`

	// Creation time in epoch milliseconds. Recency ordering and the
	// deduplication tie-break both use this value.
	Timestamp int64 `json:"timestamp"`

	// Identity of the remote writer. Empty on purely local records.
	CreatedBy string `json:"createdBy,omitempty"`
}

// ProductLine is a single line of an order. Lines are order-preserving and
// carry no uniqueness constraint.
type ProductLine struct {
	Reference     string   `json:"reference"`
	Denomination  string   `json:"denomination"`
	TotalMeters   float64  `json:"totalMeters"`
	MetersPerUnit *float64 `json:"metersPerUnit,omitempty"`
	Boxes         *int     `json:"boxes,omitempty"`
	UnitsPerBox   *int     `json:"unitsPerBox,omitempty"`
}

// OrderRecord is a scanned or manually entered sales order.
type OrderRecord struct {
	ID            string        `json:"id"`
	ClientName    string        `json:"clientName"`
	ClientNumber  string        `json:"clientNumber"`
	OrderNumber   string        `json:"orderNumber" validate:"required"`
	Date          string        `json:"date"`
	Notes         string        `json:"notes,omitempty"`
	Products      []ProductLine `json:"products"`
	OriginalImage string        `json:"originalImage,omitempty"`
	Status        string        `json:"status,omitempty"`
	Timestamp     int64         `json:"timestamp"`
	CreatedBy     string        `json:"createdBy,omitempty"`
}

// NewRecordID returns a collision-resistant random identifier. The same
// scheme is used online and offline so local and remote ids share one
// namespace.
func NewRecordID() string {
	return uuid.NewString()
}

// NormalizeOrderNumber is the canonical form of an order number for
// duplicate detection: trimmed and case-insensitive.
func NormalizeOrderNumber(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
