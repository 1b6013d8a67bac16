package errors

import (
	"fmt"
	"strings"
)

// SuggestFieldName suggests the closest valid key when an unknown key is used.
func SuggestFieldName(unknown string, validFields []string) string {
	if best, ok := closest(unknown, validFields, 3); ok {
		return fmt.Sprintf("Did you mean '%s'?", best)
	}
	if len(validFields) == 0 {
		return ""
	}
	return fmt.Sprintf("Valid fields: %s", strings.Join(validFields, ", "))
}

// SuggestOperator suggests the closest known operator.
func SuggestOperator(unknown string, validOperators []string) string {
	if best, ok := closest(unknown, validOperators, 3); ok {
		return fmt.Sprintf("Did you mean '%s'?", best)
	}
	return fmt.Sprintf("Valid operators: %s", strings.Join(validOperators, ", "))
}

// SuggestActionType suggests valid action types when an unknown action is specified.
func SuggestActionType(unknown string, validActions []string) string {
	if len(validActions) == 0 {
		return ""
	}
	if best, ok := closest(unknown, validActions, 5); ok {
		return fmt.Sprintf("Did you mean '%s'?", best)
	}
	return fmt.Sprintf("Valid action types: %s", strings.Join(validActions, ", "))
}

// SuggestMissingField suggests adding a required field.
func SuggestMissingField(fieldName string, exampleValue string) string {
	if exampleValue != "" {
		return fmt.Sprintf("Add '%s: %s'", fieldName, exampleValue)
	}
	return fmt.Sprintf("Add a '%s' field", fieldName)
}

func closest(unknown string, candidates []string, maxDistance int) (string, bool) {
	best := ""
	bestDistance := maxDistance
	for _, candidate := range candidates {
		if d := levenshteinDistance(strings.ToLower(unknown), strings.ToLower(candidate)); d < bestDistance {
			bestDistance = d
			best = candidate
		}
	}
	return best, best != ""
}

// levenshteinDistance computes the edit distance between two strings.
func levenshteinDistance(s1, s2 string) int {
	if s1 == s2 {
		return 0
	}

	len1 := len(s1)
	len2 := len(s2)

	matrix := make([][]int, len1+1)
	for i := range matrix {
		matrix[i] = make([]int, len2+1)
	}

	for i := 0; i <= len1; i++ {
		matrix[i][0] = i
	}
	for j := 0; j <= len2; j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len1; i++ {
		for j := 1; j <= len2; j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}

			matrix[i][j] = min(
				matrix[i-1][j]+1,      // Deletion
				matrix[i][j-1]+1,      // Insertion
				matrix[i-1][j-1]+cost, // Substitution
			)
		}
	}

	return matrix[len1][len2]
}
