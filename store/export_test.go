package store

import "testing"

func TestExportImportRoundTrip(t *testing.T) {
	src := newTestStore(t)

	meters := 25.0
	if err := src.PutLabel(LabelRecord{ID: "a", Reference: "1000", Length: "25m", Quantity: "4", Timestamp: 100}); err != nil {
		t.Fatalf("PutLabel failed: %v", err)
	}
	if err := src.PutOrder(OrderRecord{
		ID:          "o1",
		OrderNumber: "X1",
		ClientName:  "Acme",
		Timestamp:   200,
		Products:    []ProductLine{{Reference: "10008", Denomination: "Cable", TotalMeters: 100, MetersPerUnit: &meters}},
	}); err != nil {
		t.Fatalf("PutOrder failed: %v", err)
	}

	raw, err := src.ExportJSON()
	if err != nil {
		t.Fatalf("ExportJSON failed: %v", err)
	}

	dst := newTestStore(t)
	labels, orders, err := dst.ImportJSON(raw)
	if err != nil {
		t.Fatalf("ImportJSON failed: %v", err)
	}
	if labels != 1 || orders != 1 {
		t.Errorf("Expected 1 label and 1 order imported, got %d and %d", labels, orders)
	}

	gotLabels := dst.GetLabels()
	if len(gotLabels) != 1 || gotLabels[0].ID != "a" || gotLabels[0].Reference != "1000" {
		t.Errorf("Imported label differs: %+v", gotLabels)
	}

	gotOrders := dst.GetOrders()
	if len(gotOrders) != 1 || gotOrders[0].ID != "o1" {
		t.Fatalf("Imported order differs: %+v", gotOrders)
	}
	if len(gotOrders[0].Products) != 1 || gotOrders[0].Products[0].MetersPerUnit == nil || *gotOrders[0].Products[0].MetersPerUnit != 25.0 {
		t.Errorf("Product lines not preserved: %+v", gotOrders[0].Products)
	}
}

func TestImportIsAdditive(t *testing.T) {
	dst := newTestStore(t)

	if err := dst.PutLabel(LabelRecord{ID: "existing", Reference: "9000", Timestamp: 50}); err != nil {
		t.Fatalf("PutLabel failed: %v", err)
	}

	data := ExportData{
		Records: []LabelRecord{{ID: "incoming", Reference: "1000", Timestamp: 100}},
	}
	if _, _, err := dst.Import(data); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if got := len(dst.GetLabels()); got != 2 {
		t.Errorf("Expected import to add without clearing, got %d labels", got)
	}
}

func TestImportRejectsMissingIds(t *testing.T) {
	dst := newTestStore(t)

	data := ExportData{
		Records: []LabelRecord{{Reference: "1000", Timestamp: 100}},
	}
	if _, _, err := dst.Import(data); err == nil {
		t.Error("Expected import of a record without an id to fail")
	}
}

func TestImportJSONRejectsGarbage(t *testing.T) {
	dst := newTestStore(t)

	if _, _, err := dst.ImportJSON([]byte("not json")); err == nil {
		t.Error("Expected invalid JSON to fail")
	}
}
