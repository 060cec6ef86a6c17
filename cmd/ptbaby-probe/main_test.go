package main

import (
	"reflect"
	"testing"
)

func TestExpandRange(t *testing.T) {
	got, err := expandRange("cmd08-cmd11")
	if err != nil {
		t.Fatalf("expandRange() error = %v", err)
	}
	want := []string{"cmd08", "cmd09", "cmd10", "cmd11"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expandRange() = %v, want %v", got, want)
	}

	for _, bad := range []string{"cmd10", "cmd10-abc11", "cmd12-cmd10", "cmd-cmd2"} {
		if _, err := expandRange(bad); err == nil {
			t.Errorf("expandRange(%q) should fail", bad)
		}
	}
}
