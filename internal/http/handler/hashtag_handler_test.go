package handler

import (
	"reflect"
	"testing"
)

func TestSplitHashtags(t *testing.T) {
	cases := []struct {
		raw  string
		want []string
	}{
		{"", nil},
		{"wlm2024", []string{"wlm2024"}},
		{"a, b , c", []string{"a", "b", "c"}},
		{"#tagged,＃fullwidth", []string{"tagged", "fullwidth"}},
		{" , ,#", nil},
	}

	for _, tc := range cases {
		if got := splitHashtags(tc.raw); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("splitHashtags(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}
