package spreadsheet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCriterionMatches(t *testing.T) {
	tests := []struct {
		criterion Primitive
		value     Primitive
		want      bool
	}{
		{">=5", 5.0, true},
		{">=5", 4.0, false},
		{">5", "10", false},
		{"<>5", "text", true},
		{"<=0", nil, false},
		{"=abc", "ABC", true},
		{"abc", "abd", false},
		{"<>abc", "abd", true},
		{"<b", "a", true},
		{"<b", 1.0, false},
		{"", nil, true},
		{"=", "x", false},
		{"TRUE", true, true},
		{"<>false", true, true},
		{7.0, 7.0, true},
		{7.0, "7", false},
		{true, 1.0, false},
		{">1", NewSpreadsheetError(ErrorCodeNA, ""), false},
		{"<>1", NewSpreadsheetError(ErrorCodeNA, ""), false},
	}
	for _, tt := range tests {
		c, ok := ParseCriterion(tt.criterion)
		require.True(t, ok, "%v", tt.criterion)
		require.Equal(t, tt.want, c.Matches(tt.value), "%v matches %v", tt.criterion, tt.value)
	}
}

func TestCriterionInvalid(t *testing.T) {
	for _, arg := range []Primitive{"<<1", ">=>2", "=<3", NewSpreadsheetError(ErrorCodeValue, "")} {
		_, ok := ParseCriterion(arg)
		require.False(t, ok, "%v", arg)
	}
}
