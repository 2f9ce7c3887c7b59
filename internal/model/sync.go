package model

// SyncProgress reports how far the synchronization of one pipeline has come.
// It is never persisted.
type SyncProgress struct {
	PipelineID   string `json:"pipelineId"`
	PipelineName string `json:"pipelineName"`
	Progress     int    `json:"progress"`
	BatchSize    int    `json:"batchSize"`
}

// SyncResponse is returned once a synchronization pass completes.
type SyncResponse struct {
	SynchronizationTimestamp *int64 `json:"synchronizationTimestamp"`
}

// DeploymentCountResponse is the result of a deployment frequency query.
type DeploymentCountResponse struct {
	PipelineID  string `json:"pipelineId"`
	TargetStage string `json:"targetStage"`
	StartTime   int64  `json:"startTime"`
	EndTime     int64  `json:"endTime"`
	Count       int    `json:"count"`
}
