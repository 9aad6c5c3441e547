package actorcheck

// DefaultRules returns the built-in correction table. Rules are ordered;
// the first rule whose actor patterns all appear among the claims (and whose
// context keywords, if any, appear in the scene context) wins.
func DefaultRules() []Rule {
	return []Rule{
		{
			ActorPatterns:   []string{"Keanu Reeves", "Carrie-Anne Moss"},
			ContextKeywords: []string{"code", "agent", "sunglasses"},
			Candidate:       Candidate{Title: "The Matrix", Year: 1999, TMDBID: 603},
		},
		{
			ActorPatterns:   []string{"Harrison Ford", "Rutger Hauer"},
			ContextKeywords: []string{"rain", "rooftop", "neon"},
			Candidate:       Candidate{Title: "Blade Runner", Year: 1982, TMDBID: 78},
		},
		{
			ActorPatterns:   []string{"Al Pacino", "Robert De Niro"},
			ContextKeywords: []string{"diner", "heist"},
			Candidate:       Candidate{Title: "Heat", Year: 1995, TMDBID: 949},
		},
		{
			ActorPatterns: []string{"Bryan Cranston", "Aaron Paul"},
			Candidate:     Candidate{Title: "Breaking Bad", Year: 2008, TMDBID: 1396},
		},
	}
}
