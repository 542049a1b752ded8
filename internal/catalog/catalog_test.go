package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func testInventory() []Vehicle {
	return []Vehicle{
		{Brand: "Nissan", Model: "Versa", Year: 2021, Price: 245000, Type: "sedan"},
		{Brand: "Mazda", Model: "CX-5", Year: 2020, Price: 380000, Type: "suv"},
		{Brand: "Honda", Model: "CR-V", Year: 2019, Price: 350000, Type: "suv"},
		{Brand: "Volkswagen", Model: "Jetta", Year: 2021, Price: 290000, Type: "sedan"},
		{Brand: "Toyota", Model: "RAV4", Year: 2021, Price: 420000, Type: "suv"},
		{Brand: "Kia", Model: "Rio", Year: 2022, Price: 230000, Type: "hatchback"},
		{Brand: "Nissan", Model: "NP300", Year: 2020, Price: 310000, Type: "pickup"},
	}
}

func TestFindFiltersByBudgetAndNeed(t *testing.T) {
	m := NewMatcherFromVehicles(testInventory())

	results := m.Find("family", 400000, "")
	if len(results) == 0 {
		t.Fatal("expected candidates under budget")
	}
	if len(results) > 3 {
		t.Fatalf("expected at most 3 results, got %d", len(results))
	}
	for _, v := range results {
		if v.Price > 400000 {
			t.Errorf("vehicle %s %s over budget: %f", v.Brand, v.Model, v.Price)
		}
		if v.Type != "suv" && v.Type != "minivan" {
			t.Errorf("family need should select suv/minivan, got %s", v.Type)
		}
	}
	// Closest budget fit ranks first.
	if results[0].Model != "CX-5" {
		t.Errorf("expected CX-5 first (closest to budget), got %s", results[0].Model)
	}
}

func TestFindEmptyWhenNothingMatches(t *testing.T) {
	m := NewMatcherFromVehicles(testInventory())
	if results := m.Find("family", 100000, ""); len(results) != 0 {
		t.Errorf("expected no results under 100000, got %d", len(results))
	}
}

func TestFindTieBrokenByCatalogOrder(t *testing.T) {
	m := NewMatcherFromVehicles([]Vehicle{
		{Brand: "A", Model: "One", Year: 2020, Price: 200000, Type: "sedan"},
		{Brand: "B", Model: "Two", Year: 2020, Price: 200000, Type: "sedan"},
	})
	results := m.Find("sedan", 250000, "")
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Brand != "A" {
		t.Errorf("tie should keep catalog order, got %s first", results[0].Brand)
	}
}

func TestFindPreferenceNarrowsButNeverEmpties(t *testing.T) {
	m := NewMatcherFromVehicles(testInventory())

	results := m.Find("family", 400000, "Mazda")
	if len(results) != 1 || results[0].Brand != "Mazda" {
		t.Fatalf("expected preference to narrow to Mazda, got %+v", results)
	}

	// A preference naming an attribute the record does not carry must not
	// wipe out the candidate list.
	results = m.Find("family", 400000, "automática")
	if len(results) == 0 {
		t.Error("unmatchable preference should fall back to unfiltered candidates")
	}
}

func TestLoadCSVAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.csv")
	csv := "brand,model,year,price,type\nNissan,Versa,2021,245000,sedan\nbad,row,notayear,1,x\nMazda,CX-5,2020,380000,suv\n"
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	m, err := NewMatcher(path)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	if m.Size() != 2 {
		t.Errorf("expected invalid rows skipped, size 2, got %d", m.Size())
	}

	updated := "brand,model,year,price,type\nKia,Rio,2022,230000,hatchback\n"
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("rewrite fixture: %v", err)
	}
	if err := m.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if m.Size() != 1 {
		t.Errorf("expected snapshot replaced, size 1, got %d", m.Size())
	}
}

func TestLoadCSVMissingColumn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.csv")
	if err := os.WriteFile(path, []byte("brand,model,year\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := NewMatcher(path); err == nil {
		t.Error("expected error for missing columns")
	}
}
