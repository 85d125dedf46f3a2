package domain

// Difficulty is a question difficulty level, 1 (easiest) to 5 (hardest).
type Difficulty int

const (
	MinDifficulty Difficulty = 1
	MaxDifficulty Difficulty = 5
)

// Valid reports whether d lies in [MinDifficulty, MaxDifficulty].
func (d Difficulty) Valid() bool {
	return d >= MinDifficulty && d <= MaxDifficulty
}

// Clamp pins d into the valid range.
func (d Difficulty) Clamp() Difficulty {
	if d < MinDifficulty {
		return MinDifficulty
	}
	if d > MaxDifficulty {
		return MaxDifficulty
	}
	return d
}

// ValidateDifficulty returns an InvalidInputError when d is out of range.
func ValidateDifficulty(field string, d Difficulty) error {
	if !d.Valid() {
		return Invalid(field, "difficulty must be between %d and %d, got %d", MinDifficulty, MaxDifficulty, d)
	}
	return nil
}
