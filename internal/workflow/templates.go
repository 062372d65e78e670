package workflow

// Template constructors build the stock workflow definitions. They take no
// input and always return identical definitions; the task itself flows in
// through ExecutionContext at execute time.

// LiteTemplate is a single execution phase with no session state directory.
func LiteTemplate() *Definition {
	return &Definition{
		Name:  "lite",
		Level: "lite",
		Phases: []Phase{
			{
				ID:         "execute",
				Name:       "Execute task",
				Type:       PhaseExecution,
				AssignedAI: "auto",
			},
		},
	}
}

// QuickTemplate plans first, then executes.
func QuickTemplate() *Definition {
	return &Definition{
		Name:  "quick",
		Level: "quick",
		Phases: []Phase{
			{
				ID:         "plan",
				Name:       "Plan the work",
				Type:       PhasePlanning,
				AssignedAI: "auto",
				Outputs:    []string{"plan"},
			},
			{
				ID:         "execute",
				Name:       "Execute the plan",
				Type:       PhaseExecution,
				AssignedAI: "auto",
				Inputs:     []string{"plan"},
			},
		},
	}
}

// FullTemplate plans, delegates analysis to a bridge backend, then reviews.
func FullTemplate() *Definition {
	return &Definition{
		Name:         "full",
		Level:        "full",
		AIAssignment: "native plans and reviews; bridge backend analyzes",
		Phases: []Phase{
			{
				ID:         "plan",
				Name:       "Plan the work",
				Type:       PhasePlanning,
				AssignedAI: "auto",
				Outputs:    []string{"plan"},
			},
			{
				ID:         "delegate",
				Name:       "Delegate analysis",
				Type:       PhaseDelegation,
				AssignedAI: "auto",
				Inputs:     []string{"plan"},
				Outputs:    []string{"analysis"},
			},
			{
				ID:         "review",
				Name:       "Review the outcome",
				Type:       PhaseReview,
				AssignedAI: "auto",
				Inputs:     []string{"analysis"},
			},
		},
	}
}

// ParallelAnalysisTemplate runs two independent backend analyses
// concurrently, then synthesizes them.
func ParallelAnalysisTemplate() *Definition {
	return &Definition{
		Name:         "parallel-analysis",
		Level:        "full",
		AIAssignment: "codex and gemini analyze in parallel; native synthesizes",
		Parallel: &ParallelConfig{
			MaxConcurrency:  2,
			DependencyAware: true,
		},
		Phases: []Phase{
			{
				ID:         "analyze-codex",
				Name:       "Codex analysis",
				Type:       PhaseDelegation,
				AssignedAI: "codex",
				Outputs:    []string{"analysis-codex"},
			},
			{
				ID:         "analyze-gemini",
				Name:       "Gemini analysis",
				Type:       PhaseDelegation,
				AssignedAI: "gemini",
				Outputs:    []string{"analysis-gemini"},
			},
			{
				ID:         "synthesize",
				Name:       "Synthesize findings",
				Type:       PhaseExecution,
				AssignedAI: "auto",
				Inputs:     []string{"analysis-codex", "analysis-gemini"},
			},
		},
	}
}

// StagedReviewTemplate is the heavyweight pipeline: gather context, analyze
// from two angles, prototype, implement, audit. Dependency-aware so the two
// analyses share a stage.
func StagedReviewTemplate() *Definition {
	return &Definition{
		Name:         "staged-review",
		Level:        "full",
		AIAssignment: "staged pipeline with dual analysis and final audit",
		Parallel: &ParallelConfig{
			MaxConcurrency:  2,
			DependencyAware: true,
		},
		Phases: []Phase{
			{
				ID:         "context",
				Name:       "Gather context",
				Type:       PhasePlanning,
				AssignedAI: "auto",
				Outputs:    []string{"context"},
			},
			{
				ID:         "analyze-native",
				Name:       "Native analysis",
				Type:       PhaseDelegation,
				AssignedAI: "claude",
				Inputs:     []string{"context"},
				Outputs:    []string{"analysis-native"},
			},
			{
				ID:         "analyze-bridge",
				Name:       "Bridge analysis",
				Type:       PhaseDelegation,
				AssignedAI: "codex",
				Inputs:     []string{"context"},
				Outputs:    []string{"analysis-bridge"},
			},
			{
				ID:         "prototype",
				Name:       "Prototype the approach",
				Type:       PhaseExecution,
				AssignedAI: "auto",
				Inputs:     []string{"analysis-native", "analysis-bridge"},
				Outputs:    []string{"prototype"},
			},
			{
				ID:         "implement",
				Name:       "Implement the change",
				Type:       PhaseExecution,
				AssignedAI: "auto",
				Inputs:     []string{"prototype"},
				Outputs:    []string{"implementation"},
			},
			{
				ID:         "audit",
				Name:       "Audit the result",
				Type:       PhaseReview,
				AssignedAI: "auto",
				Inputs:     []string{"implementation"},
			},
		},
	}
}

// Templates maps level names to their template constructors.
var Templates = map[string]func() *Definition{
	"lite":     LiteTemplate,
	"quick":    QuickTemplate,
	"full":     FullTemplate,
	"parallel": ParallelAnalysisTemplate,
	"staged":   StagedReviewTemplate,
}
