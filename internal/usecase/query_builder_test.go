package usecase

import (
	"testing"
)

func TestBuildQuery(t *testing.T) {
	testCases := []struct {
		name      string
		cleanName string
		want      string
	}{
		{
			name:      "lower-cases plain name",
			cleanName: "Chicken Breast",
			want:      "chicken breast",
		},
		{
			name:      "removes marketing stop words",
			cleanName: "Fresh Organic Free Range Eggs",
			want:      "eggs",
		},
		{
			name:      "removes local and natural",
			cleanName: "local natural honey",
			want:      "honey",
		},
		{
			name:      "drops tokens shorter than three characters",
			cleanName: "can of corn",
			want:      "can corn",
		},
		{
			name:      "strips punctuation around tokens",
			cleanName: "milk, whole",
			want:      "milk whole",
		},
		{
			name:      "falls back to original name when every token is removed",
			cleanName: "Fresh OJ",
			want:      "Fresh OJ",
		},
		{
			name:      "empty name",
			cleanName: "",
			want:      "",
		},
		{
			name:      "collapses whitespace",
			cleanName: "  green   apples ",
			want:      "green apples",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := BuildQuery(tc.cleanName)
			if got != tc.want {
				t.Errorf("BuildQuery(%q) = %q, want %q", tc.cleanName, got, tc.want)
			}
		})
	}
}

func TestQueryTokens(t *testing.T) {
	got := queryTokens("2 Large Organic Eggs")
	want := []string{"large", "eggs"}

	if len(got) != len(want) {
		t.Fatalf("queryTokens() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
