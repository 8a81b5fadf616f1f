package relevance

// Keywords is the two-tier keyword configuration for relevance matching.
// A report must match at least one topic keyword and one geography keyword
// unless its source is trusted.
type Keywords struct {
	// ExactTopics are short ambiguous tokens matched on word boundaries
	// ("raid" alone matches inside nothing, but means little without
	// context).
	ExactTopics []string

	// PhraseTopics are long enough to be unambiguous; substring matched.
	PhraseTopics []string

	// Geo is the union of every configured region's keyword set,
	// substring matched against lowercased text.
	Geo []string

	// NoiseIdioms are phrases built from the ambiguous tokens that mark
	// a report as off-topic when no stronger topic phrase is present.
	NoiseIdioms []string
}

// DefaultKeywords returns the built-in topic tiers. Geography keywords come
// from the region locales and are merged in by the caller.
func DefaultKeywords() Keywords {
	return Keywords{
		ExactTopics: []string{"raid", "sweep"},
		PhraseTopics: []string{
			"enforcement operation",
			"enforcement activity",
			"enforcement agents",
			"federal agents",
			"plainclothes agents",
			"agents spotted",
			"agents at",
			"checkpoint",
			"detained by",
			"detention van",
			"unmarked van",
			"unmarked suv",
			"unmarked vehicle",
			"removal operation",
			"community alert",
			"rapid response",
			"know your rights",
			"sighting reported",
			"confirmed sighting",
		},
		NoiseIdioms: []string{
			"raid boss",
			"raid night",
			"raid party",
			"raid team",
			"raid array",
			"raid controller",
			"raid 0",
			"raid 1",
			"raid 5",
			"clean sweep",
			"sweep the series",
			"sweep the floor",
			"chimney sweep",
			"sweepstakes",
		},
	}
}
