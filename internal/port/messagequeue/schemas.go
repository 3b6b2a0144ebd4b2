package messagequeue

// ExecutionStatusPayload is the schema for executions.status messages.
// Statuses are effective (reconciled) values, never raw backend strings.
type ExecutionStatusPayload struct {
	ExecutionID string `json:"execution_id"`
	PlanID      string `json:"plan_id"`
	WaveNumber  int    `json:"wave_number"` // -1 for execution-level transitions
	From        string `json:"from"`
	To          string `json:"to"`
}

// ExecutionProgressPayload is the schema for executions.progress messages.
type ExecutionProgressPayload struct {
	ExecutionID    string `json:"execution_id"`
	PlanID         string `json:"plan_id"`
	Percentage     int    `json:"percentage"`
	CompletedWaves int    `json:"completed_waves"`
	TotalWaves     int    `json:"total_waves"`
}

// ExecutionCommandPayload is the schema for executions.command messages.
type ExecutionCommandPayload struct {
	ExecutionID string `json:"execution_id"`
	Command     string `json:"command"` // cancel, resume, terminate
}

// ExecutionTerminatedPayload is the schema for executions.terminated messages.
type ExecutionTerminatedPayload struct {
	ExecutionID     string `json:"execution_id"`
	TotalTerminated int    `json:"total_terminated"`
	TotalFailed     int    `json:"total_failed"`
}
