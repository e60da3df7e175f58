package ui

import (
	"reflect"
	"testing"
)

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		s1       string
		s2       string
		expected int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"abc", "abc", 0},
		{"kitten", "sitting", 3},
		{"saturday", "sunday", 3},
		{"Book", "Bok", 1},
		{"author_id", "author", 3},
	}

	for _, tt := range tests {
		t.Run(tt.s1+"_"+tt.s2, func(t *testing.T) {
			if got := LevenshteinDistance(tt.s1, tt.s2); got != tt.expected {
				t.Errorf("LevenshteinDistance(%q, %q) = %d; want %d", tt.s1, tt.s2, got, tt.expected)
			}
		})
	}
}

func TestFindSimilar(t *testing.T) {
	candidates := []string{"shop.Book", "shop.Author", "shop.Profile", "auth.User", "auth.Group"}

	tests := []struct {
		name     string
		target   string
		expected []string
	}{
		{"exact", "shop.Book", []string{"shop.Book"}},
		{"typo", "shop.Bok", []string{"shop.Book"}},
		{"case insensitive", "SHOP.AUTHOR", []string{"shop.Author"}},
		{"too far", "billing.Invoice", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindSimilar(tt.target, candidates); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("FindSimilar(%q) = %v; want %v", tt.target, got, tt.expected)
			}
		})
	}
}
