package util

import "strings"

func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func AnyBlank(values ...string) bool {
	for _, value := range values {
		if IsBlank(value) {
			return true
		}
	}

	return false
}
