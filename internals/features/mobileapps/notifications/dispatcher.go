package notifications

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"mobileapps_backend/internals/features/mobileapps/model"
	"mobileapps_backend/internals/helpers/auth"
	"mobileapps_backend/internals/helpers/metrics"
	"mobileapps_backend/internals/helpers/queue"
)

type Mode string

const (
	ModeBroadcast         Mode = "broadcast"
	ModeAppUsers          Mode = "app_users"
	ModeSelectedUsers     Mode = "selected_users"
	ModeOrganizationUsers Mode = "organization_users"
)

var (
	ErrInvalidRequest      = errors.New("invalid notification request")
	ErrMessageRequired     = fmt.Errorf("%w: message is required", ErrInvalidRequest)
	ErrUsersRequired       = fmt.Errorf("%w: users is required", ErrInvalidRequest)
	ErrInvalidOrganization = fmt.Errorf("%w: organization is not linked to the mobile app", ErrInvalidRequest)

	ErrAppNotFound = errors.New("mobile app not found")
	ErrAppInactive = errors.New("mobile app is not active")
	ErrNoProvider  = errors.New("mobile app has no notification provider")
	ErrEnqueue     = errors.New("notification could not be queued")
)

// MemberDirectory resolves the users of an organization.
type MemberDirectory interface {
	MemberUserIDs(ctx context.Context, orgID int64) ([]int64, error)
}

// Dispatcher validates publish requests and hands them to the queue.
// Its job ends at a successful enqueue.
type Dispatcher struct {
	DB      *gorm.DB
	Queue   queue.Producer
	Members MemberDirectory
	Now     func() time.Time
}

func NewDispatcher(db *gorm.DB, q queue.Producer, members MemberDirectory) *Dispatcher {
	return &Dispatcher{DB: db, Queue: q, Members: members, Now: time.Now}
}

/* ===== addressing modes ===== */

// BroadcastAll sends to every user of every active app that has a provider.
func (d *Dispatcher) BroadcastAll(ctx context.Context, actor auth.Actor, message string) ([]string, error) {
	if err := auth.RequireStaff(actor); err != nil {
		return nil, err
	}
	message, err := requireMessage(message)
	if err != nil {
		return nil, err
	}

	var apps []model.MobileAppModel
	if err := d.DB.WithContext(ctx).
		Preload("NotificationProvider").
		Where("mobile_app_is_active = ? AND mobile_app_notification_provider_id IS NOT NULL", true).
		Order("mobile_app_id").
		Find(&apps).Error; err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(apps))
	for i := range apps {
		if apps[i].NotificationProvider == nil {
			continue
		}
		id, err := d.enqueue(ctx, actor, &apps[i], ModeBroadcast, message, nil, true)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// NotifyAppUsers sends to every user of one app.
func (d *Dispatcher) NotifyAppUsers(ctx context.Context, actor auth.Actor, appID int64, message string) ([]string, error) {
	app, message, err := d.prepare(ctx, actor, appID, message)
	if err != nil {
		return nil, err
	}
	id, err := d.enqueue(ctx, actor, app, ModeAppUsers, message, nil, true)
	if err != nil {
		return nil, err
	}
	return []string{id}, nil
}

// NotifySelectedUsers sends to an explicit list of user ids.
func (d *Dispatcher) NotifySelectedUsers(ctx context.Context, actor auth.Actor, appID int64, message string, userIDs []int64) ([]string, error) {
	app, message, err := d.prepare(ctx, actor, appID, message)
	if err != nil {
		return nil, err
	}
	if len(userIDs) == 0 {
		return nil, ErrUsersRequired
	}
	id, err := d.enqueue(ctx, actor, app, ModeSelectedUsers, message, userIDs, false)
	if err != nil {
		return nil, err
	}
	return []string{id}, nil
}

// NotifyOrganizationUsers sends to the members of one organization linked to the app.
func (d *Dispatcher) NotifyOrganizationUsers(ctx context.Context, actor auth.Actor, appID, orgID int64, message string) ([]string, error) {
	app, message, err := d.prepare(ctx, actor, appID, message)
	if err != nil {
		return nil, err
	}

	var linked int64
	if err := d.DB.WithContext(ctx).Model(&model.MobileAppOrganizationModel{}).
		Where("mobile_app_organization_mobile_app_id = ? AND mobile_app_organization_organization_id = ?", appID, orgID).
		Count(&linked).Error; err != nil {
		return nil, err
	}
	if linked == 0 {
		return nil, ErrInvalidOrganization
	}

	userIDs, err := d.Members.MemberUserIDs(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if len(userIDs) == 0 {
		log.Printf("[Dispatcher] organization %d of app %d has no members, nothing queued", orgID, appID)
		return []string{}, nil
	}
	id, err := d.enqueue(ctx, actor, app, ModeOrganizationUsers, message, userIDs, false)
	if err != nil {
		return nil, err
	}
	return []string{id}, nil
}

/* ===== shared checks ===== */

func requireMessage(message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrMessageRequired
	}
	return message, nil
}

// prepare runs the checks shared by the single-app modes, in order:
// staff, message, app exists, app active, provider configured.
func (d *Dispatcher) prepare(ctx context.Context, actor auth.Actor, appID int64, message string) (*model.MobileAppModel, string, error) {
	if err := auth.RequireStaff(actor); err != nil {
		return nil, "", err
	}
	message, err := requireMessage(message)
	if err != nil {
		return nil, "", err
	}

	var app model.MobileAppModel
	if err := d.DB.WithContext(ctx).Preload("NotificationProvider").
		First(&app, "mobile_app_id = ?", appID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrAppNotFound
		}
		return nil, "", err
	}
	if !app.IsActive {
		return nil, "", ErrAppInactive
	}
	if app.NotificationProvider == nil {
		return nil, "", ErrNoProvider
	}
	return &app, message, nil
}

func (d *Dispatcher) enqueue(ctx context.Context, actor auth.Actor, app *model.MobileAppModel, mode Mode, message string, userIDs []int64, sendToAll bool) (string, error) {
	if userIDs == nil {
		userIDs = []int64{}
	}
	t := &Task{
		ID:             uuid.NewString(),
		MobileAppID:    app.ID,
		Mode:           mode,
		Provider:       app.NotificationProvider.Name,
		ProviderAPIURL: app.NotificationProvider.APIURL,
		ProviderKey:    app.ProviderKey,
		ProviderSecret: app.ProviderSecret,
		Message:        message,
		UserIDs:        userIDs,
		SendToAll:      sendToAll,
		EnqueuedAt:     d.Now().UTC(),
	}
	body, err := EncodeTask(t)
	if err != nil {
		return "", err
	}
	queueID, err := d.Queue.Enqueue(ctx, body)
	if err != nil {
		log.Printf("[Dispatcher] enqueue failed app=%d mode=%s: %v", app.ID, mode, err)
		return "", fmt.Errorf("%w: %v", ErrEnqueue, err)
	}
	metrics.NotificationsEnqueued.WithLabelValues(string(mode)).Inc()

	audit := model.NotificationDispatchModel{
		TaskID:      t.ID,
		QueueID:     queueID,
		MobileAppID: app.ID,
		Mode:        string(mode),
		UserIDs:     model.RecipientIDs(userIDs),
		SendToAll:   sendToAll,
		Message:     message,
		CreatedBy:   actor.UserID,
	}
	if err := d.DB.WithContext(ctx).Create(&audit).Error; err != nil {
		log.Printf("[Dispatcher] audit row for task %s not written: %v", t.ID, err)
	}
	log.Printf("[Dispatcher] queued task=%s app=%d mode=%s recipients=%d all=%v", t.ID, app.ID, mode, len(userIDs), sendToAll)
	return t.ID, nil
}
