package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"leadmachine_backend/internal/companies/domain"
)

const TaskDedupBatch = "companies.dedup_batch"

const TaskScoreLead = "leads.score"

const TaskSendEmail = "outreach.email.send"

type DedupBatchPayload struct {
	JobID        string               `json:"jobId"`
	Observations []domain.Observation `json:"observations"`
}

type ScoreLeadPayload struct {
	LeadID string `json:"leadId"`
}

type SendEmailPayload struct {
	EmailID string `json:"emailId"`
}

func NewDedupBatchTask(payload DedupBatchPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDedupBatch, data), nil
}

func ParseDedupBatchPayload(task *asynq.Task) (DedupBatchPayload, error) {
	var payload DedupBatchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return DedupBatchPayload{}, err
	}
	return payload, nil
}

func NewScoreLeadTask(payload ScoreLeadPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskScoreLead, data), nil
}

func ParseScoreLeadPayload(task *asynq.Task) (ScoreLeadPayload, error) {
	var payload ScoreLeadPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ScoreLeadPayload{}, err
	}
	return payload, nil
}

func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSendEmail, data), nil
}

func ParseSendEmailPayload(task *asynq.Task) (SendEmailPayload, error) {
	var payload SendEmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SendEmailPayload{}, err
	}
	return payload, nil
}
