package queue

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
)

// Task types processed by the worker.
const (
	TypeContractDeliver = "contract:deliver"
	TypeContractArchive = "contract:archive"
)

// QueueContracts is the asynq queue contract tasks are placed on.
const QueueContracts = "contracts"

// ContractTask is the payload shared by every contract task.
type ContractTask struct {
	ContractID string `json:"contractId"`
}

// NewContractTask builds a task of the given type for a contract. The task id is
// derived from type and contract so a contract is never queued twice for the same work.
func NewContractTask(typename, contractID string, opts ...asynq.Option) (*asynq.Task, error) {
	contractID = strings.TrimSpace(contractID)
	if contractID == "" {
		return nil, fmt.Errorf("queue: %s: contract id is required", typename)
	}
	payload, err := json.Marshal(ContractTask{ContractID: contractID})
	if err != nil {
		return nil, err
	}
	opts = append([]asynq.Option{asynq.TaskID(typename + ":" + contractID)}, opts...)
	return asynq.NewTask(typename, payload, opts...), nil
}

// ParseContractTask decodes a contract task payload. Malformed payloads are wrapped
// with asynq.SkipRetry since retrying cannot fix them.
func ParseContractTask(t *asynq.Task) (ContractTask, error) {
	var out ContractTask
	if err := json.Unmarshal(t.Payload(), &out); err != nil {
		return ContractTask{}, fmt.Errorf("queue: decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if strings.TrimSpace(out.ContractID) == "" {
		return ContractTask{}, fmt.Errorf("queue: %s payload has no contract id: %w", t.Type(), asynq.SkipRetry)
	}
	return out, nil
}
