package catalog

import (
	"reflect"
	"testing"
)

func TestDefault_Order(t *testing.T) {
	c := Default()
	want := []string{"Math Basics", "Advanced Math", "Python Basics", "Data Science", "Web Development", "Blockchain"}
	if got := c.IDs(); !reflect.DeepEqual(got, want) {
		t.Fatalf("IDs() = %v, want %v", got, want)
	}
	if c.Len() != 6 {
		t.Errorf("Len() = %d, want 6", c.Len())
	}
}

func TestCatalog_Lookup(t *testing.T) {
	c := Default()
	tests := []struct {
		id    string
		found bool
		index int
	}{
		{"Math Basics", true, 0},
		{"Blockchain", true, 5},
		{"math basics", false, -1},
		{"", false, -1},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := c.Contains(tt.id); got != tt.found {
				t.Errorf("Contains(%q) = %v, want %v", tt.id, got, tt.found)
			}
			if got := c.IndexOf(tt.id); got != tt.index {
				t.Errorf("IndexOf(%q) = %d, want %d", tt.id, got, tt.index)
			}
		})
	}
}

func TestNew_IgnoresDuplicates(t *testing.T) {
	c := New(Lesson{"a", "first"}, Lesson{"b", "second"}, Lesson{"a", "again"})
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	if got := c.Descriptions()[0]; got != "first" {
		t.Errorf("first description = %q, want %q", got, "first")
	}
}
