package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"mobileapps_backend/internals/databases/testhelpers"
	"mobileapps_backend/internals/features/mobileapps/model"
	orgService "mobileapps_backend/internals/features/organizations/service"
	"mobileapps_backend/internals/helpers/auth"
)

// recordingQueue captures every enqueued body.
type recordingQueue struct {
	mu     sync.Mutex
	bodies [][]byte
	err    error
}

func (q *recordingQueue) Enqueue(_ context.Context, body []byte) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return "", q.err
	}
	q.bodies = append(q.bodies, body)
	return "1-0", nil
}

func (q *recordingQueue) tasks(t *testing.T) []*Task {
	t.Helper()
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Task, 0, len(q.bodies))
	for _, b := range q.bodies {
		task, err := DecodeTask(b)
		require.NoError(t, err)
		out = append(out, task)
	}
	return out
}

type dispatchFixture struct {
	db       *gorm.DB
	q        *recordingQueue
	d        *Dispatcher
	staff    auth.Actor
	provider model.NotificationProviderModel
}

func newDispatchFixture(t *testing.T) dispatchFixture {
	t.Helper()
	db := testhelpers.SetupTestDB(t)
	q := &recordingQueue{}
	d := NewDispatcher(db, q, orgService.NewMembership(db))
	d.Now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	p := model.NotificationProviderModel{Name: "urban-airship"}
	require.NoError(t, db.Create(&p).Error)
	admin := testhelpers.SeedUser(t, db, "admin", true)
	return dispatchFixture{db: db, q: q, d: d, staff: auth.Actor{UserID: admin.ID, IsStaff: true}, provider: p}
}

func (f dispatchFixture) app(t *testing.T, name string, active, withProvider bool) model.MobileAppModel {
	t.Helper()
	m := model.MobileAppModel{
		Name:                name,
		CurrentVersion:      "1.0",
		DeploymentMechanism: model.DeploymentPublicStore,
		IsActive:            active,
		UpdatedBy:           f.staff.UserID,
		ProviderKey:         testhelpers.StringPtr("enc_str__stored-key"),
	}
	if withProvider {
		m.NotificationProviderID = &f.provider.ID
	}
	require.NoError(t, f.db.Create(&m).Error)
	return m
}

func TestSelectedUsersNeedsRecipients(t *testing.T) {
	f := newDispatchFixture(t)
	app := f.app(t, "A", true, true)
	ctx := context.Background()

	_, err := f.d.NotifySelectedUsers(ctx, f.staff, app.ID, "hello", []int64{})
	assert.ErrorIs(t, err, ErrUsersRequired)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Empty(t, f.q.tasks(t))

	ids, err := f.d.NotifySelectedUsers(ctx, f.staff, app.ID, "hello", []int64{1, 2, 3})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	tasks := f.q.tasks(t)
	require.Len(t, tasks, 1)
	assert.Equal(t, []int64{1, 2, 3}, tasks[0].UserIDs)
	assert.False(t, tasks[0].SendToAll)
	assert.Equal(t, "urban-airship", tasks[0].Provider)
	assert.Equal(t, "enc_str__stored-key", *tasks[0].ProviderKey)
	assert.Equal(t, ids[0], tasks[0].ID)

	var audit model.NotificationDispatchModel
	require.NoError(t, f.db.First(&audit, "notification_dispatch_task_id = ?", ids[0]).Error)
	assert.Equal(t, model.RecipientIDs{1, 2, 3}, audit.UserIDs)
	assert.Equal(t, string(ModeSelectedUsers), audit.Mode)
}

func TestSingleAppModesShareChecks(t *testing.T) {
	f := newDispatchFixture(t)
	inactive := f.app(t, "Inactive", false, true)
	noProvider := f.app(t, "Bare", true, false)
	org := testhelpers.SeedOrganization(t, f.db, "Org")
	ctx := context.Background()

	modes := map[string]func(appID int64, msg string) error{
		"app users": func(appID int64, msg string) error {
			_, err := f.d.NotifyAppUsers(ctx, f.staff, appID, msg)
			return err
		},
		"selected users": func(appID int64, msg string) error {
			_, err := f.d.NotifySelectedUsers(ctx, f.staff, appID, msg, []int64{1})
			return err
		},
		"organization users": func(appID int64, msg string) error {
			_, err := f.d.NotifyOrganizationUsers(ctx, f.staff, appID, org.ID, msg)
			return err
		},
	}

	for name, send := range modes {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, send(inactive.ID, "hi"), ErrAppInactive)
			assert.ErrorIs(t, send(noProvider.ID, "hi"), ErrNoProvider)
			assert.ErrorIs(t, send(12345, "hi"), ErrAppNotFound)
			assert.ErrorIs(t, send(inactive.ID, "   "), ErrMessageRequired)
		})
	}
	assert.Empty(t, f.q.tasks(t))
}

func TestNonStaffCannotDispatch(t *testing.T) {
	f := newDispatchFixture(t)
	app := f.app(t, "A", true, true)
	viewer := auth.Actor{UserID: 77}

	_, err := f.d.BroadcastAll(context.Background(), viewer, "hi")
	assert.ErrorIs(t, err, auth.ErrForbidden)
	_, err = f.d.NotifyAppUsers(context.Background(), viewer, app.ID, "hi")
	assert.ErrorIs(t, err, auth.ErrForbidden)
}

func TestOrganizationUsersMustBeLinked(t *testing.T) {
	f := newDispatchFixture(t)
	app := f.app(t, "A", true, true)
	u1 := testhelpers.SeedUser(t, f.db, "u1", false)
	u2 := testhelpers.SeedUser(t, f.db, "u2", false)
	linked := testhelpers.SeedOrganization(t, f.db, "Linked", u1.ID, u2.ID)
	unlinked := testhelpers.SeedOrganization(t, f.db, "Unlinked", u1.ID)
	require.NoError(t, f.db.Create(&model.MobileAppOrganizationModel{MobileAppID: app.ID, OrganizationID: linked.ID}).Error)
	ctx := context.Background()

	_, err := f.d.NotifyOrganizationUsers(ctx, f.staff, app.ID, unlinked.ID, "hi")
	assert.ErrorIs(t, err, ErrInvalidOrganization)
	_, err = f.d.NotifyOrganizationUsers(ctx, f.staff, app.ID, 9999, "hi")
	assert.ErrorIs(t, err, ErrInvalidOrganization)

	ids, err := f.d.NotifyOrganizationUsers(ctx, f.staff, app.ID, linked.ID, "hi")
	require.NoError(t, err)
	require.Len(t, ids, 1)
	tasks := f.q.tasks(t)
	require.Len(t, tasks, 1)
	assert.Equal(t, []int64{u1.ID, u2.ID}, tasks[0].UserIDs)
}

func TestBroadcastOnlyActiveAppsWithProvider(t *testing.T) {
	f := newDispatchFixture(t)
	a := f.app(t, "A", true, true)
	f.app(t, "B", false, true)
	f.app(t, "C", true, false)
	d := f.app(t, "D", true, true)

	_, err := f.d.BroadcastAll(context.Background(), f.staff, "")
	assert.ErrorIs(t, err, ErrMessageRequired)

	ids, err := f.d.BroadcastAll(context.Background(), f.staff, "all hands")
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	tasks := f.q.tasks(t)
	require.Len(t, tasks, 2)
	assert.Equal(t, a.ID, tasks[0].MobileAppID)
	assert.Equal(t, d.ID, tasks[1].MobileAppID)
	for _, task := range tasks {
		assert.True(t, task.SendToAll)
		assert.Empty(t, task.UserIDs)
		assert.Equal(t, ModeBroadcast, task.Mode)
	}
}

func TestEnqueueFailureIsReported(t *testing.T) {
	f := newDispatchFixture(t)
	app := f.app(t, "A", true, true)
	f.q.err = errors.New("redis down")

	_, err := f.d.NotifyAppUsers(context.Background(), f.staff, app.ID, "hi")
	assert.ErrorIs(t, err, ErrEnqueue)

	var n int64
	f.db.Model(&model.NotificationDispatchModel{}).Count(&n)
	assert.Zero(t, n)
}
