package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskAssistantReply = "chat.assistant.reply"

const TaskBookingConfirmation = "booking.confirmation"

// AssistantReplyPayload carries the pending user message alongside the lead
// id: the message is model context only and is never written to the chat log.
type AssistantReplyPayload struct {
	LeadID      string `json:"leadId"`
	UserMessage string `json:"userMessage"`
}

type BookingConfirmationPayload struct {
	LeadID string `json:"leadId"`
}

func NewAssistantReplyTask(payload AssistantReplyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAssistantReply, data), nil
}

func ParseAssistantReplyPayload(task *asynq.Task) (AssistantReplyPayload, error) {
	var payload AssistantReplyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return AssistantReplyPayload{}, err
	}
	return payload, nil
}

func NewBookingConfirmationTask(payload BookingConfirmationPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBookingConfirmation, data), nil
}

func ParseBookingConfirmationPayload(task *asynq.Task) (BookingConfirmationPayload, error) {
	var payload BookingConfirmationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return BookingConfirmationPayload{}, err
	}
	return payload, nil
}
