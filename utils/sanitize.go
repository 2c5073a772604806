package utils

import "github.com/microcosm-cc/bluemonday"

// Exercise names are free text typed by users; strip all markup before they
// are persisted or compared.
var sanitizer = bluemonday.StrictPolicy()

// Sanitize removes any HTML from user supplied text.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}
