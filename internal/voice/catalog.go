package voice

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownLanguage is returned when a language code has no catalog entry.
var ErrUnknownLanguage = errors.New("unknown language code")

// Language codes accepted by the catalog. Plain codes select the default
// regional voice; region-qualified codes pick a specific variant.
const (
	CYM = "cym" // Welsh
	DAN = "dan" // Danish
	DEU = "deu" // German
	ENG = "eng" // English
	FRA = "fra" // French
	ISL = "isl" // Icelandic
	ITA = "ita" // Italian
	JPN = "jpn" // Japanese
	NLD = "nld" // Dutch
	NOR = "nor" // Norwegian
	POL = "pol" // Polish
	POR = "por" // Portuguese
	RON = "ron" // Romanian
	RUS = "rus" // Russian
	SPA = "spa" // Spanish
	SWE = "swe" // Swedish
	TUR = "tur" // Turkish

	EngAUS = "eng-AUS" // English (Australia)
	EngGBR = "eng-GBR" // English (GB)
	EngIND = "eng-IND" // English (India)
	EngUSA = "eng-USA" // English (USA)
	EngWLS = "eng-WLS" // English (Wales)
	FraCAN = "fra-CAN" // French (Canada)
	FraFRA = "fra-FRA" // French (France)
	PorBRA = "por-BRA" // Portuguese (Brazil)
	PorPRT = "por-PRT" // Portuguese (Portugal)
	SpaESP = "spa-ESP" // Spanish (Spain)
	SpaUSA = "spa-USA" // Spanish (USA)
)

// DefaultLanguage is used when the caller does not specify one.
const DefaultLanguage = EngUSA

// catalog maps language codes to provider voice names. Loaded once,
// never mutated.
var catalog = map[string]string{
	CYM: "Gwyneth",
	DAN: "Naja",
	DEU: "Marlene",
	ENG: "Joanna",
	FRA: "Celine",
	ISL: "Dora",
	ITA: "Carla",
	JPN: "Mizuki",
	NLD: "Lotte",
	NOR: "Liv",
	POL: "Maja",
	POR: "Ines",
	RON: "Carmen",
	RUS: "Tatyana",
	SPA: "Conchita",
	SWE: "Astrid",
	TUR: "Filiz",

	EngAUS: "Nicole",
	EngGBR: "Emma",
	EngIND: "Raveena",
	EngUSA: "Joanna",
	EngWLS: "Geraint",
	FraCAN: "Chantal",
	FraFRA: "Celine",
	PorBRA: "Vitoria",
	PorPRT: "Ines",
	SpaESP: "Conchita",
	SpaUSA: "Penelope",
}

// Resolve returns the provider voice name for a language code.
func Resolve(code string) (string, error) {
	name, ok := catalog[code]
	if !ok {
		return "", fmt.Errorf("%q: %w", code, ErrUnknownLanguage)
	}
	return name, nil
}

// Supported lists all language codes the catalog accepts, sorted.
func Supported() []string {
	codes := make([]string, 0, len(catalog))
	for code := range catalog {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
