package utils

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseCSV(t *testing.T) {
	csvData := `company,product name,unit price
Acme,Widget,1.50
Acme,Gadget,2`

	reader := strings.NewReader(csvData)

	got, err := ParseCSV(reader)
	if err != nil {
		t.Fatalf("ParseCSV returned error: %v", err)
	}

	want := [][]string{
		{"company", "product name", "unit price"},
		{"Acme", "Widget", "1.50"},
		{"Acme", "Gadget", "2"},
	}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseCSV returned %+v, want %+v", got, want)
	}
}

func TestParseCSVStripsBOMAndRaggedRows(t *testing.T) {
	csvData := "\xEF\xBB\xBF公司,单价\nAcme\n"

	got, err := ParseCSV(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("ParseCSV returned error: %v", err)
	}

	want := [][]string{
		{"公司", "单价"},
		{"Acme"},
	}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseCSV returned %+v, want %+v", got, want)
	}
}
