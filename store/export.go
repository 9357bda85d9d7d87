package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// ExportData is the bulk snapshot format shared by export files and backups.
type ExportData struct {
	Records    []LabelRecord `json:"records"`
	Orders     []OrderRecord `json:"orders"`
	ExportDate string        `json:"exportDate"`
}

// Export takes a full, unfiltered snapshot of the store.
func (s *LocalStore) Export() ExportData {
	return ExportData{
		Records:    s.GetLabels(),
		Orders:     s.GetOrders(),
		ExportDate: time.Now().UTC().Format(time.RFC3339),
	}
}

// ExportJSON returns the snapshot as indented JSON.
func (s *LocalStore) ExportJSON() ([]byte, error) {
	data, err := json.MarshalIndent(s.Export(), "", "  ")
	if err != nil {
		return nil, &StoreError{Op: "ExportJSON", Err: err}
	}
	return data, nil
}

// Import upserts every record of a snapshot by id. Additive: existing items
// not present in the snapshot are left untouched. Returns the number of
// labels and orders written.
func (s *LocalStore) Import(data ExportData) (int, int, error) {
	labels := 0
	for _, rec := range data.Records {
		if rec.ID == "" {
			return labels, 0, &ValidationError{Field: "id", Reason: "is required on imported records"}
		}
		if err := s.PutLabel(rec); err != nil {
			return labels, 0, err
		}
		labels++
	}

	orders := 0
	for _, rec := range data.Orders {
		if rec.ID == "" {
			return labels, orders, &ValidationError{Field: "id", Reason: "is required on imported orders"}
		}
		if err := s.PutOrder(rec); err != nil {
			return labels, orders, err
		}
		orders++
	}

	return labels, orders, nil
}

// ImportJSON parses a snapshot file and imports it.
func (s *LocalStore) ImportJSON(raw []byte) (int, int, error) {
	var data ExportData
	if err := json.Unmarshal(raw, &data); err != nil {
		return 0, 0, &StoreError{Op: "ImportJSON", Err: fmt.Errorf("invalid snapshot: %w", err)}
	}
	return s.Import(data)
}
