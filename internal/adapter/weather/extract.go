package weather

import "strings"

var placeMarkers = []string{" in ", " at ", " for "}

const placeTrimSet = "?!. ,"

// ExtractCity guesses the place name in a free-text weather question. The
// text after the first marker found (checked in the order " in ", " at ",
// " for ") is used; without a marker the whole query is the place.
func ExtractCity(query string) string {
	lowered := strings.ToLower(query)
	for _, marker := range placeMarkers {
		if idx := strings.Index(lowered, marker); idx >= 0 {
			return strings.Trim(strings.TrimSpace(query[idx+len(marker):]), placeTrimSet)
		}
	}
	return strings.Trim(strings.TrimSpace(query), placeTrimSet)
}
