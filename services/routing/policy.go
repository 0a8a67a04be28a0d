package routing

// Task types recognized by the gateway. The set is closed: anything else
// is treated as TaskGeneral.
const (
	TaskSummarization  = "summarization"
	TaskExtraction     = "extraction"
	TaskClassification = "classification"
	TaskCodeGeneration = "code_generation"
	TaskTranslation    = "translation"
	TaskConversation   = "conversation"
	TaskGeneral        = "general"
)

// taskModels is the built-in task-to-model policy. It centralizes default
// model heuristics independent of any one provider family; per-provider and
// per-router overrides take precedence (see Engine.SelectModel).
var taskModels = map[string]string{
	TaskSummarization:  "anthropic/claude-3.5-haiku",
	TaskExtraction:     "openai/gpt-4o-mini",
	TaskClassification: "openai/gpt-4o-mini",
	TaskCodeGeneration: "anthropic/claude-3.5-sonnet",
	TaskTranslation:    "openai/gpt-4o",
	TaskConversation:   "openai/gpt-4o-mini",
	TaskGeneral:        "openai/gpt-4o-mini",
}

// RecommendedModel returns the policy model for a task type. The lookup is
// total: unclassified work maps to the general entry.
func RecommendedModel(taskType string) string {
	if model, ok := taskModels[taskType]; ok {
		return model
	}
	return taskModels[TaskGeneral]
}

// TaskTypes returns the closed set of recognized task types.
func TaskTypes() []string {
	return []string{
		TaskSummarization,
		TaskExtraction,
		TaskClassification,
		TaskCodeGeneration,
		TaskTranslation,
		TaskConversation,
		TaskGeneral,
	}
}

// IsKnownTaskType reports whether taskType is in the closed set.
func IsKnownTaskType(taskType string) bool {
	_, ok := taskModels[taskType]
	return ok
}
