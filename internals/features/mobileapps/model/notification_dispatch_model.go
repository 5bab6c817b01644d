package model

import (
	"database/sql/driver"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// NotificationDispatchModel records one publish request handed to the queue.
type NotificationDispatchModel struct {
	ID          int64        `gorm:"column:notification_dispatch_id;primaryKey;autoIncrement"`
	TaskID      string       `gorm:"column:notification_dispatch_task_id;size:64;not null;uniqueIndex"`
	QueueID     string       `gorm:"column:notification_dispatch_queue_id;size:64"`
	MobileAppID int64        `gorm:"column:notification_dispatch_mobile_app_id;not null;index"`
	Mode        string       `gorm:"column:notification_dispatch_mode;size:32;not null"`
	UserIDs     RecipientIDs `gorm:"column:notification_dispatch_user_ids"`
	SendToAll   bool         `gorm:"column:notification_dispatch_send_to_all;not null"`
	Message     string       `gorm:"column:notification_dispatch_message;type:text;not null"`
	CreatedBy   int64        `gorm:"column:notification_dispatch_created_by;not null"`
	CreatedAt   time.Time    `gorm:"column:notification_dispatch_created_at;autoCreateTime"`
}

func (NotificationDispatchModel) TableName() string { return "notification_dispatches" }

// RecipientIDs is a bigint[] on postgres and its text form elsewhere.
type RecipientIDs []int64

func (r RecipientIDs) Value() (driver.Value, error) {
	return pq.Int64Array(r).Value()
}

func (r *RecipientIDs) Scan(src any) error {
	var a pq.Int64Array
	if err := a.Scan(src); err != nil {
		return err
	}
	*r = RecipientIDs(a)
	return nil
}

func (RecipientIDs) GormDataType() string { return "text" }

func (RecipientIDs) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "bigint[]"
	}
	return "text"
}
