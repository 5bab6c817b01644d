// Package notifications turns publish requests into queued tasks and
// delivers them from a background worker.
package notifications

import (
	"time"

	"github.com/bytedance/sonic"
)

// Task is the queued unit of work. Credentials travel in their stored
// (encrypted) form and are decoded by the worker.
type Task struct {
	ID             string    `json:"id"`
	MobileAppID    int64     `json:"mobile_app_id"`
	Mode           Mode      `json:"mode"`
	Provider       string    `json:"provider"`
	ProviderAPIURL *string   `json:"provider_api_url,omitempty"`
	ProviderKey    *string   `json:"provider_key,omitempty"`
	ProviderSecret *string   `json:"provider_secret,omitempty"`
	Message        string    `json:"message"`
	UserIDs        []int64   `json:"user_ids"`
	SendToAll      bool      `json:"send_to_all"`
	EnqueuedAt     time.Time `json:"enqueued_at"`
}

func EncodeTask(t *Task) ([]byte, error) { return sonic.Marshal(t) }

func DecodeTask(b []byte) (*Task, error) {
	var t Task
	if err := sonic.Unmarshal(b, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
