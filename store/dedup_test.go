package store

import "testing"

func TestDedupLabelsKeepsNewest(t *testing.T) {
	s := newTestStore(t)

	for _, rec := range []LabelRecord{
		{ID: "a", Reference: "1000", Timestamp: 100},
		{ID: "b", Reference: "1000", Timestamp: 200},
		{ID: "c", Reference: "2000", Timestamp: 150},
	} {
		if err := s.PutLabel(rec); err != nil {
			t.Fatalf("PutLabel failed: %v", err)
		}
	}

	result, err := s.DedupLabels()
	if err != nil {
		t.Fatalf("DedupLabels failed: %v", err)
	}
	if result.Removed != 1 {
		t.Errorf("Expected 1 removed, got %d", result.Removed)
	}
	if result.Kept != 2 {
		t.Errorf("Expected 2 kept, got %d", result.Kept)
	}

	labels := s.GetLabels()
	ids := make(map[string]bool)
	for _, rec := range labels {
		ids[rec.ID] = true
	}
	if !ids["b"] || !ids["c"] || ids["a"] {
		t.Errorf("Expected survivors b and c, got %v", ids)
	}
}

func TestDedupLabelsSecondRunIsNoop(t *testing.T) {
	s := newTestStore(t)

	for _, rec := range []LabelRecord{
		{ID: "a", Reference: "1000", Timestamp: 100},
		{ID: "b", Reference: "1000", Timestamp: 200},
	} {
		if err := s.PutLabel(rec); err != nil {
			t.Fatalf("PutLabel failed: %v", err)
		}
	}

	if _, err := s.DedupLabels(); err != nil {
		t.Fatalf("First DedupLabels failed: %v", err)
	}

	result, err := s.DedupLabels()
	if err != nil {
		t.Fatalf("Second DedupLabels failed: %v", err)
	}
	if result.Removed != 0 {
		t.Errorf("Second run should remove nothing, removed %d", result.Removed)
	}
	if result.Kept != 1 {
		t.Errorf("Expected 1 kept on second run, got %d", result.Kept)
	}
}

func TestDedupLabelsSkipsEmptyReference(t *testing.T) {
	s := newTestStore(t)

	for _, rec := range []LabelRecord{
		{ID: "a", Reference: "", Timestamp: 100},
		{ID: "b", Reference: "", Timestamp: 200},
	} {
		if err := s.PutLabel(rec); err != nil {
			t.Fatalf("PutLabel failed: %v", err)
		}
	}

	result, err := s.DedupLabels()
	if err != nil {
		t.Fatalf("DedupLabels failed: %v", err)
	}
	if result.Removed != 0 {
		t.Errorf("Empty references must not be grouped, removed %d", result.Removed)
	}
	if got := len(s.GetLabels()); got != 2 {
		t.Errorf("Expected both records to survive, got %d", got)
	}
}

func TestDedupOrdersNormalizesNumbers(t *testing.T) {
	s := newTestStore(t)

	for _, rec := range []OrderRecord{
		{ID: "o1", OrderNumber: "ABC-1", Timestamp: 100},
		{ID: "o2", OrderNumber: " abc-1 ", Timestamp: 300},
		{ID: "o3", OrderNumber: "XYZ-2", Timestamp: 200},
	} {
		if err := s.PutOrder(rec); err != nil {
			t.Fatalf("PutOrder failed: %v", err)
		}
	}

	result, err := s.DedupOrders()
	if err != nil {
		t.Fatalf("DedupOrders failed: %v", err)
	}
	if result.Removed != 1 {
		t.Errorf("Expected 1 removed, got %d", result.Removed)
	}

	orders := s.GetOrders()
	for _, rec := range orders {
		if rec.ID == "o1" {
			t.Error("Expected o1 to lose to newer o2")
		}
	}
	if len(orders) != 2 {
		t.Errorf("Expected 2 orders, got %d", len(orders))
	}
}

func TestDedupThreeWayKeepsSingleNewest(t *testing.T) {
	s := newTestStore(t)

	for _, rec := range []LabelRecord{
		{ID: "a", Reference: "1000", Timestamp: 100},
		{ID: "b", Reference: "1000", Timestamp: 300},
		{ID: "c", Reference: "1000", Timestamp: 200},
	} {
		if err := s.PutLabel(rec); err != nil {
			t.Fatalf("PutLabel failed: %v", err)
		}
	}

	result, err := s.DedupLabels()
	if err != nil {
		t.Fatalf("DedupLabels failed: %v", err)
	}
	if result.Removed != 2 {
		t.Errorf("Expected 2 removed, got %d", result.Removed)
	}

	labels := s.GetLabels()
	if len(labels) != 1 || labels[0].ID != "b" {
		t.Errorf("Expected only b to survive, got %+v", labels)
	}
}
