package models

import (
	"reflect"
	"testing"
)

func TestSortStationIDs(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{name: "numeric order", input: []string{"10", "2", "7"}, want: []string{"2", "7", "10"}},
		{name: "already sorted", input: []string{"3", "7"}, want: []string{"3", "7"}},
		{name: "non-numeric last", input: []string{"b", "12", "a", "4"}, want: []string{"4", "12", "a", "b"}},
		{name: "empty", input: []string{}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SortStationIDs(tt.input)
			if !reflect.DeepEqual(tt.input, tt.want) {
				t.Errorf("SortStationIDs() = %v, want %v", tt.input, tt.want)
			}
		})
	}
}

func TestSortStations_Stable(t *testing.T) {
	stations := []Station{
		{Number: 9, Address: "nine"},
		{Number: 1, Address: "first one"},
		{Number: 1, Address: "second one"},
	}
	SortStations(stations)

	if stations[0].Address != "first one" || stations[1].Address != "second one" || stations[2].Number != 9 {
		t.Errorf("unexpected order: %+v", stations)
	}
}

func TestCityClone(t *testing.T) {
	orig := City{Name: "valence", Cities: []string{"Valencia"}}
	clone := orig.Clone()
	clone.Cities[0] = "Modified"

	if orig.Cities[0] != "Valencia" {
		t.Error("Clone should deep-copy the Cities slice")
	}
}

func TestCloneCities(t *testing.T) {
	if CloneCities(nil) != nil {
		t.Error("CloneCities(nil) should return nil")
	}

	orig := []City{{Name: "paris", Cities: []string{"Paris"}}}
	clone := CloneCities(orig)
	clone[0].Name = "lyon"
	clone[0].Cities[0] = "Lyon"

	if orig[0].Name != "paris" || orig[0].Cities[0] != "Paris" {
		t.Error("CloneCities should not share memory with the input")
	}
}

func TestStationID(t *testing.T) {
	if got := (Station{Number: 42}).ID(); got != "42" {
		t.Errorf("ID() = %q, want %q", got, "42")
	}
}
