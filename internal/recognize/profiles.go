package recognize

import (
	"sort"
	"strings"

	"transcript-server/internal/domain"
)

// HighQualitySampleRate is the lowest sample rate served by the broadband models.
const HighQualitySampleRate = 16000

type languageModels struct {
	high        string
	low         string
	diarization bool
}

var catalog = map[string]languageModels{
	"en": {high: "en-US_BroadbandModel", low: "en-US_NarrowbandModel", diarization: true},
	"de": {high: "de-DE_BroadbandModel", low: "de-DE_NarrowbandModel", diarization: false},
}

// Supported reports whether a language has recognition models.
func Supported(lang string) bool {
	_, ok := catalog[normalizeLanguage(lang)]
	return ok
}

// SelectProfile picks the model for a language and sample rate. Any rate
// below the broadband threshold, including unknown (negative) rates, selects
// the narrowband model. The boolean is false for unsupported languages.
func SelectProfile(lang string, sampleRate int) (domain.RecognitionProfile, bool) {
	lang = normalizeLanguage(lang)
	models, ok := catalog[lang]
	if !ok {
		return domain.RecognitionProfile{}, false
	}
	return profileFor(lang, models, sampleRate >= HighQualitySampleRate), true
}

// Profiles lists every profile in the catalog, ordered by id.
func Profiles() []domain.RecognitionProfile {
	out := make([]domain.RecognitionProfile, 0, len(catalog)*2)
	for lang, models := range catalog {
		out = append(out, profileFor(lang, models, true), profileFor(lang, models, false))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func profileFor(lang string, models languageModels, high bool) domain.RecognitionProfile {
	p := domain.RecognitionProfile{
		Language:    lang,
		HighQuality: high,
		Diarization: models.diarization,
	}
	if high {
		p.ID = lang + "-high"
		p.Model = models.high
	} else {
		p.ID = lang + "-low"
		p.Model = models.low
	}
	return p
}

func normalizeLanguage(lang string) string {
	return strings.ToLower(strings.TrimSpace(lang))
}
