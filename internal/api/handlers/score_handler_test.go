package handlers

import (
	"reflect"
	"testing"
)

func TestParseYears(t *testing.T) {
	cases := []struct {
		raw     string
		want    []int
		wantErr bool
	}{
		{"", []int{1}, false},
		{" , ", []int{1}, false},
		{"1", []int{1}, false},
		{"1,3,5", []int{1, 3, 5}, false},
		{"5, 1", []int{5, 1}, false},
		{"2", nil, true},
		{"one", nil, true},
	}
	for _, c := range cases {
		got, err := parseYears(c.raw)
		if c.wantErr {
			if err == nil {
				t.Errorf("parseYears(%q) expected error, got %v", c.raw, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseYears(%q) failed: %v", c.raw, err)
			continue
		}
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("parseYears(%q) = %v, want %v", c.raw, got, c.want)
		}
	}
}
