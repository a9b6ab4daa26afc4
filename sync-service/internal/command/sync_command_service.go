package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/events"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/metrics"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/sync-service/internal/replay"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/sync-service/internal/repository"
)

type SyncStore interface {
	Enqueue(ctx context.Context, items []models.SyncItem) (int, error)
	Claim(ctx context.Context, f repository.ClaimFilter) ([]models.SyncItem, error)
	Save(ctx context.Context, item *models.SyncItem) error
	Get(ctx context.Context, orgID, userID, id string) (*models.SyncItem, error)
	Requeue(ctx context.Context, orgID, userID, id string) error
	DeleteCompleted(ctx context.Context, orgID, userID, deviceID string) (int64, error)
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// Replayer sends one request through the API gateway.
type Replayer interface {
	Do(ctx context.Context, token, method, path string, body []byte) (*replay.Response, error)
}

// ProcessedKeys remembers which item IDs have already been applied upstream.
type ProcessedKeys interface {
	IsProcessed(ctx context.Context, id string) bool
	MarkProcessed(ctx context.Context, id string)
}

const (
	// MaxBatchSize bounds one enqueue call.
	MaxBatchSize = 500
	// CompletedRetention is how long completed items are kept.
	CompletedRetention = 7 * 24 * time.Hour
	// StaleSyncing is how long an item may stay claimed before the cleanup
	// job hands it back to the queue.
	StaleSyncing = 15 * time.Minute
)

var (
	actionMethods = map[string][]string{
		"create": {http.MethodPost, http.MethodPut},
		"update": {http.MethodPatch, http.MethodPut, http.MethodPost},
		"delete": {http.MethodDelete},
	}
	conflictStrategies = map[string]bool{
		models.ConflictLocal:  true,
		models.ConflictServer: true,
		models.ConflictMerge:  true,
	}
)

type SyncCommandService struct {
	store     SyncStore
	gateway   Replayer
	processed ProcessedKeys
	publisher events.Emitter
	logger    *zap.Logger
	now       func() time.Time
}

func NewSyncCommandService(store SyncStore, gateway Replayer, processed ProcessedKeys, publisher events.Emitter, logger *zap.Logger) *SyncCommandService {
	return &SyncCommandService{
		store:     store,
		gateway:   gateway,
		processed: processed,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

type EnqueueResult struct {
	Accepted   int `json:"accepted"`
	Duplicates int `json:"duplicates"`
}

// Enqueue stores a device's offline writes. Items whose ID is already queued,
// either earlier or twice in the same batch, count as duplicates.
func (s *SyncCommandService) Enqueue(ctx context.Context, cmd cqrs.EnqueueSyncCommand) (*EnqueueResult, error) {
	if cmd.DeviceID == "" {
		return nil, apperr.Invalid("deviceId is required")
	}
	if len(cmd.Items) == 0 {
		return nil, apperr.Invalid("at least one item is required")
	}
	if len(cmd.Items) > MaxBatchSize {
		return nil, apperr.Invalid("at most %d items can be queued at once", MaxBatchSize)
	}

	now := s.now().UTC()
	seen := make(map[string]bool, len(cmd.Items))
	items := make([]models.SyncItem, 0, len(cmd.Items))
	for i, in := range cmd.Items {
		if seen[in.ID] {
			continue
		}
		seen[in.ID] = true
		item, err := newItem(cmd, in, now)
		if err != nil {
			return nil, apperr.Invalid("item %d: %s", i, apperr.Message(err))
		}
		items = append(items, item)
	}

	accepted, err := s.store.Enqueue(ctx, items)
	if err != nil {
		return nil, err
	}
	s.logger.Info("sync items queued",
		zap.String("deviceId", cmd.DeviceID),
		zap.Int("accepted", accepted),
		zap.Int("duplicates", len(cmd.Items)-accepted),
	)
	return &EnqueueResult{Accepted: accepted, Duplicates: len(cmd.Items) - accepted}, nil
}

func newItem(cmd cqrs.EnqueueSyncCommand, in cqrs.SyncItemInput, now time.Time) (models.SyncItem, error) {
	if in.ID == "" || in.EntityType == "" {
		return models.SyncItem{}, apperr.Invalid("id and entityType are required")
	}
	action := strings.ToLower(in.Action)
	methods, ok := actionMethods[action]
	if !ok {
		return models.SyncItem{}, apperr.Invalid("unknown action %q", in.Action)
	}
	method := strings.ToUpper(in.Method)
	if method == "" {
		method = methods[0]
	}
	if !contains(methods, method) {
		return models.SyncItem{}, apperr.Invalid("method %s does not fit action %s", method, action)
	}
	if err := checkPath(in.Path); err != nil {
		return models.SyncItem{}, err
	}

	strategy := in.ConflictStrategy
	if strategy == "" {
		strategy = models.ConflictMerge
	}
	if !conflictStrategies[strategy] {
		return models.SyncItem{}, apperr.Invalid("unknown conflict strategy %q", in.ConflictStrategy)
	}

	payload := in.Payload
	if action == "delete" {
		payload = nil
	} else if _, err := replay.DecodeObject(payload); err != nil {
		return models.SyncItem{}, apperr.Invalid("payload must be a JSON object")
	}

	clientTS := in.ClientTimestamp
	if clientTS.IsZero() {
		clientTS = now
	}
	var base *time.Time
	if in.BaseVersion != nil {
		b := in.BaseVersion.UTC()
		base = &b
	}

	return models.SyncItem{
		ID:               in.ID,
		OrganizationID:   cmd.OrganizationID,
		UserID:           cmd.UserID,
		DeviceID:         cmd.DeviceID,
		EntityType:       in.EntityType,
		EntityID:         in.EntityID,
		Action:           action,
		Method:           method,
		Path:             in.Path,
		Payload:          payload,
		BaseVersion:      base,
		ConflictStrategy: strategy,
		Status:           models.SyncPending,
		ClientTimestamp:  clientTS.UTC(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// checkPath accepts gateway-relative API paths only. The sync routes
// themselves cannot be replayed.
func checkPath(path string) error {
	switch {
	case !strings.HasPrefix(path, "/v1/"):
		return apperr.Invalid("path must start with /v1/")
	case strings.HasPrefix(path, "/v1/sync"):
		return apperr.Invalid("sync routes cannot be queued")
	case strings.Contains(path, ".."), strings.Contains(path, "://"):
		return apperr.Invalid("path %q is not allowed", path)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// ItemOutcome is what happened to one item during a process run.
type ItemOutcome struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Resolution string `json:"resolution,omitempty"`
	Error      string `json:"error,omitempty"`
}

type ProcessResult struct {
	DeviceID  string        `json:"deviceId"`
	Processed int           `json:"processed"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	Retrying  int           `json:"retrying"`
	Conflicts int           `json:"conflicts"`
	Items     []ItemOutcome `json:"items"`
}

func (r *ProcessResult) add(item *models.SyncItem) {
	r.Processed++
	switch item.Status {
	case models.SyncCompleted:
		r.Completed++
	case models.SyncFailed:
		r.Failed++
	case models.SyncConflict:
		r.Conflicts++
	case models.SyncPending:
		r.Retrying++
	}
	r.Items = append(r.Items, ItemOutcome{ID: item.ID, Status: item.Status, Resolution: item.Resolution, Error: item.LastError})
}

// Process replays the device's pending items oldest first. Naming an entity
// also picks up that entity's failed items.
func (s *SyncCommandService) Process(ctx context.Context, cmd cqrs.ProcessSyncCommand) (*ProcessResult, error) {
	if cmd.DeviceID == "" {
		return nil, apperr.Invalid("deviceId is required")
	}
	filter := repository.ClaimFilter{
		OrganizationID: cmd.OrganizationID,
		UserID:         cmd.UserID,
		DeviceID:       cmd.DeviceID,
		Statuses:       []string{models.SyncPending},
		EntityTypes:    cmd.EntityTypes,
		EntityID:       cmd.EntityID,
	}
	if cmd.EntityID != "" {
		filter.Statuses = append(filter.Statuses, models.SyncFailed)
	}
	items, err := s.store.Claim(ctx, filter)
	if err != nil {
		return nil, err
	}

	result := &ProcessResult{DeviceID: cmd.DeviceID, Items: []ItemOutcome{}}
	for i := range items {
		item := &items[i]
		if ctx.Err() != nil {
			// Hand the rest back untouched.
			item.Status = models.SyncPending
		} else {
			claimed := *item
			s.replayItem(ctx, cmd.Token, item)
			if ctx.Err() != nil && item.Status != models.SyncCompleted {
				// Interrupted mid-flight: not an attempt against the retry budget.
				*item = claimed
				item.Status = models.SyncPending
			}
		}
		item.UpdatedAt = s.now().UTC()
		if err := s.store.Save(context.WithoutCancel(ctx), item); err != nil {
			return nil, err
		}
		if ctx.Err() == nil {
			result.add(item)
		}
	}

	s.logger.Info("sync run finished",
		zap.String("deviceId", cmd.DeviceID),
		zap.Int("processed", result.Processed),
		zap.Int("completed", result.Completed),
		zap.Int("failed", result.Failed),
		zap.Int("retrying", result.Retrying),
		zap.Int("conflicts", result.Conflicts),
	)
	if err := s.publisher.Publish(context.WithoutCancel(ctx), events.SyncEventsStream, events.SyncCompleted, events.SyncCompletedEvent{
		OrganizationID: cmd.OrganizationID,
		UserID:         cmd.UserID,
		DeviceID:       cmd.DeviceID,
		Completed:      result.Completed,
		Failed:         result.Failed,
		Retrying:       result.Retrying,
		Conflicts:      result.Conflicts,
	}); err != nil {
		s.logger.Warn("failed to publish sync completed event", zap.Error(err))
	}
	return result, ctx.Err()
}

// errTransient marks failures worth another attempt.
var errTransient = errors.New("transient")

// replayItem sends one item and records the outcome on it.
func (s *SyncCommandService) replayItem(ctx context.Context, token string, item *models.SyncItem) {
	if s.processed.IsProcessed(ctx, item.ID) {
		s.complete(ctx, item, 0)
		metrics.RecordSyncItem("skipped")
		return
	}

	body := []byte(item.Payload)
	if item.Action == "update" && item.BaseVersion != nil {
		resolved, done, err := s.resolve(ctx, token, item)
		if err != nil {
			s.fail(item, err)
			return
		}
		if done {
			s.complete(ctx, item, 0)
			metrics.RecordSyncItem("completed")
			return
		}
		body = resolved
	}

	resp, err := s.gateway.Do(ctx, token, item.Method, item.Path, body)
	if err != nil {
		s.fail(item, fmt.Errorf("%w: %v", errTransient, err))
		return
	}
	switch {
	case resp.OK():
		s.complete(ctx, item, resp.Status)
		metrics.RecordSyncItem("completed")
	case resp.Status == http.StatusConflict:
		item.Status = models.SyncConflict
		item.ResponseStatus = resp.Status
		item.LastError = upstreamError(resp)
		metrics.RecordSyncItem("conflict")
	default:
		item.ResponseStatus = resp.Status
		s.fail(item, statusError(resp))
	}
}

// resolve checks the server copy of an update target. It returns the body to
// send, or done when the server copy wins.
func (s *SyncCommandService) resolve(ctx context.Context, token string, item *models.SyncItem) ([]byte, bool, error) {
	resp, err := s.gateway.Do(ctx, token, http.MethodGet, item.Path, nil)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", errTransient, err)
	}
	if !resp.OK() {
		item.ResponseStatus = resp.Status
		return nil, false, statusError(resp)
	}
	server, err := replay.DecodeObject(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("unreadable server copy: %w", err)
	}
	version, ok := replay.Version(server)
	if !ok || !version.After(*item.BaseVersion) {
		return item.Payload, false, nil
	}

	item.Resolution = item.ConflictStrategy
	switch item.ConflictStrategy {
	case models.ConflictServer:
		return nil, true, nil
	case models.ConflictLocal:
		return item.Payload, false, nil
	}
	client, err := replay.DecodeObject(item.Payload)
	if err != nil {
		return nil, false, fmt.Errorf("unreadable payload: %w", err)
	}
	merged, err := json.Marshal(replay.Merge(server, client))
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode merged document: %w", err)
	}
	return merged, false, nil
}

func statusError(resp *replay.Response) error {
	err := errors.New(upstreamError(resp))
	if resp.Status >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %v", errTransient, err)
	}
	return err
}

// upstreamError prefers the service's own message over the bare status.
func upstreamError(resp *replay.Response) string {
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(resp.Body, &body) == nil && body.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", resp.Status, body.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", resp.Status, http.StatusText(resp.Status))
}

func (s *SyncCommandService) complete(ctx context.Context, item *models.SyncItem, status int) {
	now := s.now().UTC()
	item.Status = models.SyncCompleted
	item.LastError = ""
	if status != 0 {
		item.ResponseStatus = status
	}
	item.CompletedAt = &now
	s.processed.MarkProcessed(ctx, item.ID)
}

// fail retries transient errors until the retry budget is spent. Anything
// else fails the item immediately.
func (s *SyncCommandService) fail(item *models.SyncItem, err error) {
	msg := strings.TrimPrefix(err.Error(), errTransient.Error()+": ")
	item.LastError = msg
	if !errors.Is(err, errTransient) {
		item.Status = models.SyncFailed
		metrics.RecordSyncItem("failed")
		return
	}
	item.RetryCount++
	if item.RetryCount >= models.MaxSyncRetries {
		item.Status = models.SyncFailed
		metrics.RecordSyncItem("failed")
		s.logger.Warn("sync item gave up after retries", zap.String("itemId", item.ID), zap.String("error", msg))
		return
	}
	item.Status = models.SyncPending
	metrics.RecordSyncItem("retry")
}

// Retry puts a failed or conflicting item back in the queue.
func (s *SyncCommandService) Retry(ctx context.Context, cmd cqrs.RetrySyncItemCommand) (*models.SyncItem, error) {
	item, err := s.store.Get(ctx, cmd.OrganizationID, cmd.UserID, cmd.ItemID)
	if err != nil {
		return nil, err
	}
	if item.Status != models.SyncFailed && item.Status != models.SyncConflict {
		return nil, apperr.Unprocessable("only failed or conflicting items can be retried, item is %s", item.Status)
	}
	if err := s.store.Requeue(ctx, cmd.OrganizationID, cmd.UserID, cmd.ItemID); err != nil {
		return nil, err
	}
	item.Status = models.SyncPending
	item.RetryCount = 0
	item.LastError = ""
	return item, nil
}

func (s *SyncCommandService) ClearCompleted(ctx context.Context, cmd cqrs.ClearCompletedCommand) (int64, error) {
	if cmd.DeviceID == "" {
		return 0, apperr.Invalid("deviceId is required")
	}
	return s.store.DeleteCompleted(ctx, cmd.OrganizationID, cmd.UserID, cmd.DeviceID)
}

// Cleanup is the scheduled maintenance job. It drops completed items past
// retention and releases items stuck in syncing.
func (s *SyncCommandService) Cleanup(ctx context.Context) error {
	now := s.now().UTC()
	deleted, err := s.store.DeleteCompletedBefore(ctx, now.Add(-CompletedRetention))
	if err != nil {
		return err
	}
	released, err := s.store.ReleaseStale(ctx, now.Add(-StaleSyncing))
	if err != nil {
		return err
	}
	if deleted > 0 || released > 0 {
		s.logger.Info("sync queue cleaned up", zap.Int64("deleted", deleted), zap.Int64("released", released))
	}
	return nil
}
