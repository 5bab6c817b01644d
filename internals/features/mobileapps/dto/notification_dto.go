package dto

import (
	"time"

	"mobileapps_backend/internals/features/mobileapps/model"
)

type NotificationRequest struct {
	Message string `json:"message" validate:"required"`
}

type SelectedUsersNotificationRequest struct {
	Message string  `json:"message" validate:"required"`
	Users   []int64 `json:"users" validate:"required,min=1,dive,gt=0"`
}

type DispatchResponse struct {
	TaskIDs []string `json:"task_ids"`
}

/* =========================
   Notification providers
========================= */

type NotificationProviderRequest struct {
	Name   string  `json:"name" validate:"required,max=255"`
	APIURL *string `json:"api_url" validate:"omitempty,url,max=255"`
}

type NotificationProviderResponse struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	APIURL   *string   `json:"api_url"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

func ToProviderResponse(m *model.NotificationProviderModel) NotificationProviderResponse {
	return NotificationProviderResponse{
		ID:       m.ID,
		Name:     m.Name,
		APIURL:   m.APIURL,
		Created:  m.CreatedAt,
		Modified: m.UpdatedAt,
	}
}
