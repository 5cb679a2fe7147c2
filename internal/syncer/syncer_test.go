package syncer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"roadsync/internal/connectivity"
	"roadsync/internal/gateway"
	"roadsync/internal/media"
	"roadsync/internal/queue"
	"roadsync/internal/report"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var errNetwork = errors.New("connection reset")

type fixture struct {
	store    *queue.Store
	gw       *gateway.MockReportGateway
	uploader *media.MockUploader
	monitor  *connectivity.Monitor
	orch     *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctrl := gomock.NewController(t)

	store, err := queue.OpenAt(filepath.Join(t.TempDir(), "queue.db"), testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := &fixture{
		store:    store,
		gw:       gateway.NewMockReportGateway(ctrl),
		uploader: media.NewMockUploader(ctrl),
		monitor:  connectivity.NewMonitor(testLogger),
	}
	f.orch = New(store, f.gw, f.uploader, f.monitor, testLogger)

	return f
}

func draft(desc string) report.Draft {
	return report.Draft{
		Latitude:    -18.9,
		Longitude:   47.5,
		Description: desc,
		Category:    report.CategoryPothole,
	}
}

// --- Submit ---

func TestSubmit_OnlineDelivers(t *testing.T) {
	f := newFixture(t)
	f.monitor.Set(connectivity.Online())

	f.gw.EXPECT().Create(gomock.Any(), gomock.Any()).Return("srv-1", nil)

	rcpt, err := f.orch.Submit(context.Background(), "user-1", draft("pothole"))
	require.NoError(t, err)
	assert.False(t, rcpt.Queued)
	assert.Equal(t, "srv-1", rcpt.RemoteID)

	n, err := f.store.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSubmit_OnlineWithPhotoUploadsFirst(t *testing.T) {
	f := newFixture(t)
	f.monitor.Set(connectivity.Online())

	d := draft("with photo")
	d.Photo = []byte{0xff, 0xd8, 0xff}

	f.uploader.EXPECT().
		Upload(gomock.Any(), "user-1", d.Photo).
		Return("https://blob/reports/user-1/1.jpg", nil)
	f.gw.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, r report.RemoteReport) (string, error) {
			assert.Equal(t, "https://blob/reports/user-1/1.jpg", r.PhotoURL)
			return "srv-2", nil
		})

	rcpt, err := f.orch.Submit(context.Background(), "user-1", d)
	require.NoError(t, err)
	assert.Equal(t, "srv-2", rcpt.RemoteID)
}

func TestSubmit_OfflineQueuesWithoutRemoteCall(t *testing.T) {
	f := newFixture(t)
	f.monitor.Set(connectivity.Offline())
	// No gateway or uploader expectations: any call fails the test.

	d := draft("offline pothole")
	d.Photo = []byte{0x01}

	rcpt, err := f.orch.Submit(context.Background(), "user-1", d)
	require.NoError(t, err)
	assert.True(t, rcpt.Queued)
	assert.NotEmpty(t, rcpt.SubmissionID)

	subs, err := f.store.PeekAll()
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, rcpt.SubmissionID, subs[0].ID)
	assert.Equal(t, "user-1", subs[0].OwnerID)
	assert.Equal(t, d.Description, subs[0].Draft.Description)
	assert.Equal(t, d.Photo, subs[0].Draft.Photo, "raw photo bytes stay queued")
}

func TestSubmit_TransientFailureDegradesToQueued(t *testing.T) {
	f := newFixture(t)
	f.monitor.Set(connectivity.Online())

	f.gw.EXPECT().Create(gomock.Any(), gomock.Any()).Return("", errNetwork)

	rcpt, err := f.orch.Submit(context.Background(), "user-1", draft("flaky network"))
	require.NoError(t, err, "transient failure surfaces as queued, not as an error")
	assert.True(t, rcpt.Queued)

	n, err := f.store.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSubmit_UploadFailureQueuesRawPhoto(t *testing.T) {
	f := newFixture(t)
	f.monitor.Set(connectivity.Online())

	d := draft("photo upload dies")
	d.Photo = []byte{0x02}

	f.uploader.EXPECT().Upload(gomock.Any(), "user-1", d.Photo).Return("", errNetwork)

	rcpt, err := f.orch.Submit(context.Background(), "user-1", d)
	require.NoError(t, err)
	assert.True(t, rcpt.Queued)

	subs, err := f.store.PeekAll()
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, d.Photo, subs[0].Draft.Photo)
}

func TestSubmit_BackendRejectionIsHardError(t *testing.T) {
	f := newFixture(t)
	f.monitor.Set(connectivity.Online())

	f.gw.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		Return("", gateway.ErrRejected)

	_, err := f.orch.Submit(context.Background(), "user-1", draft("rejected"))
	require.Error(t, err)
	assert.ErrorIs(t, err, gateway.ErrRejected)

	n, err := f.store.Len()
	require.NoError(t, err)
	assert.Zero(t, n, "rejected payloads are never queued")
}

func TestSubmit_NoOwnerIsPreconditionError(t *testing.T) {
	f := newFixture(t)
	f.monitor.Set(connectivity.Offline())

	_, err := f.orch.Submit(context.Background(), "", draft("orphan"))
	require.ErrorIs(t, err, ErrNoOwner)

	n, err := f.store.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSubmit_InvalidDraftNeverQueued(t *testing.T) {
	f := newFixture(t)
	f.monitor.Set(connectivity.Offline())

	bad := draft("bad coords")
	bad.Latitude = 400

	_, err := f.orch.Submit(context.Background(), "user-1", bad)
	require.ErrorIs(t, err, report.ErrInvalidDraft)

	n, err := f.store.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
}

// --- Drain ---

func enqueueOffline(t *testing.T, f *fixture, descs ...string) []string {
	t.Helper()
	f.monitor.Set(connectivity.Offline())

	ids := make([]string, 0, len(descs))
	for _, desc := range descs {
		rcpt, err := f.orch.Submit(context.Background(), "user-1", draft(desc))
		require.NoError(t, err)
		require.True(t, rcpt.Queued)
		ids = append(ids, rcpt.SubmissionID)
	}

	return ids
}

func TestDrain_FullSuccessEmptiesQueue(t *testing.T) {
	f := newFixture(t)
	enqueueOffline(t, f, "one", "two", "three")

	f.gw.EXPECT().Create(gomock.Any(), gomock.Any()).Return("id", nil).Times(3)

	res, err := f.orch.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempted)
	assert.Len(t, res.Delivered, 3)
	assert.Zero(t, res.Remaining)

	subs, err := f.store.PeekAll()
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestDrain_PartialFailureKeepsOnlyFailedItem(t *testing.T) {
	f := newFixture(t)
	ids := enqueueOffline(t, f, "one", "two", "three")

	f.gw.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, r report.RemoteReport) (string, error) {
			if r.Description == "two" {
				return "", errNetwork
			}
			return "id", nil
		}).
		Times(3)

	res, err := f.orch.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempted)
	assert.Equal(t, []string{ids[0], ids[2]}, res.Delivered)
	assert.Equal(t, 1, res.Remaining)

	subs, err := f.store.PeekAll()
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, ids[1], subs[0].ID, "only the failed item stays queued")
}

func TestDrain_OrderPreservedAndClientTokenForwarded(t *testing.T) {
	f := newFixture(t)
	ids := enqueueOffline(t, f, "first", "second")

	var tokens []string
	f.gw.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, r report.RemoteReport) (string, error) {
			tokens = append(tokens, r.ClientToken)
			return "id", nil
		}).
		Times(2)

	_, err := f.orch.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ids, tokens, "delivery follows enqueue order, token rides along")
}

func TestDrain_RejectedItemDroppedLoudly(t *testing.T) {
	f := newFixture(t)
	ids := enqueueOffline(t, f, "poison")

	f.gw.EXPECT().Create(gomock.Any(), gomock.Any()).Return("", gateway.ErrRejected)

	res, err := f.orch.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ids, res.Rejected)
	assert.Zero(t, res.Remaining, "a permanently rejected payload does not clog the queue")
}

func TestDrain_EmptyQueueIsNoop(t *testing.T) {
	f := newFixture(t)

	res, err := f.orch.Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Attempted)
}

// Reconnect scenario from the field: A and B queued offline, backend
// accepts A and drops B, next drain delivers B.
func TestDrain_ReconnectScenario(t *testing.T) {
	f := newFixture(t)
	ids := enqueueOffline(t, f, "A", "B")

	f.gw.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, r report.RemoteReport) (string, error) {
			if r.Description == "B" {
				return "", errNetwork
			}
			return "id-a", nil
		}).
		Times(2)

	res, err := f.orch.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{ids[0]}, res.Delivered)

	subs, err := f.store.PeekAll()
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, ids[1], subs[0].ID)

	// Backend recovered.
	f.gw.EXPECT().Create(gomock.Any(), gomock.Any()).Return("id-b", nil)

	res, err = f.orch.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{ids[1]}, res.Delivered)

	subs, err = f.store.PeekAll()
	require.NoError(t, err)
	assert.Empty(t, subs)
}

// --- Run ---

func TestRun_DrainsOnReconnect(t *testing.T) {
	f := newFixture(t)
	enqueueOffline(t, f, "queued while offline")

	delivered := make(chan struct{})
	f.gw.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, report.RemoteReport) (string, error) {
			close(delivered)
			return "id", nil
		})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- f.orch.Run(ctx) }()

	// Run subscribes on its own goroutine, so keep pushing the
	// transition until the drain observes it.
	require.Eventually(t, func() bool {
		f.monitor.Set(connectivity.Online())
		select {
		case <-delivered:
			return true
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond, "drain never ran after reconnect")

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	subs, err := f.store.PeekAll()
	require.NoError(t, err)
	assert.Empty(t, subs)
}
