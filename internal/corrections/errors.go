package corrections

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrEmptyText       = errors.New("text is required")
	ErrManualMode      = errors.New("correction runs in manual mode")
	ErrTemplateInvalid = errors.New("template and agentId are required")
)

const (
	ErrorCodeValidation      = "VALIDATION_ERROR"
	ErrorCodeRepairExhausted = "REPAIR_EXHAUSTED"
	ErrorCodeTimeout         = "AGENT_TIMEOUT"
	ErrorCodeAgentExecution  = "AGENT_EXECUTION_ERROR"
	ErrorCodePersistence     = "PERSISTENCE_ERROR"
	ErrorCodeInternal        = "INTERNAL_ERROR"
)

func classifyFailure(err error) string {
	if err == nil {
		return ErrorCodeInternal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorCodeTimeout
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "missing required fields"):
		return ErrorCodeValidation
	case strings.Contains(msg, "repair exhausted"):
		return ErrorCodeRepairExhausted
	case strings.Contains(msg, "timeout"):
		return ErrorCodeTimeout
	case strings.Contains(msg, "persist") || strings.Contains(msg, "storage") || strings.Contains(msg, "database"):
		return ErrorCodePersistence
	case strings.Contains(msg, "llm") || strings.Contains(msg, "model") || strings.Contains(msg, "agent"):
		return ErrorCodeAgentExecution
	}
	return ErrorCodeInternal
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
