package catalog

// Default returns the built-in mental math topics.
func Default() *Catalog {
	return New(
		Topic{
			Name:      "Arithmetic",
			Title:     "Arithmetic",
			Subtopics: []string{"Multiplication", "Subtraction", "Estimation"},
			Tips: []string{
				"Use chunking: break big numbers into smaller chunks (e.g., 47×6 = 40×6 + 7×6).",
				"Use complements for subtraction: 100 - 37 = 63 (think complements).",
				"Use doubling/halving for multiplication with even factors.",
			},
		},
		Topic{
			Name:  "Algebra",
			Title: "Algebra",
			Tips: []string{
				"Move constants to the other side first, then isolate the variable.",
				"Try plugging small integers to check solutions quickly.",
				"Simplify both sides by combining like terms before solving.",
			},
		},
		Topic{
			Name:  "DiffEq",
			Title: "Differential Equations",
			Tips: []string{
				"Identify if this is separable or linear; separate variables if possible.",
				"Try to find an integrating factor for first-order linear equations.",
				"Check for special solutions like constants or simple polynomials first.",
			},
		},
		Topic{
			Name:  "WordProblem",
			Title: "Word Problems",
			Tips: []string{
				"Translate phrases to equations step-by-step; label unknowns explicitly.",
				"Draw a quick diagram or timeline for motion/age problems.",
				"Identify what is being asked: final value, rate, or total.",
			},
		},
	)
}
