package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"calman.com/worklog/calman/v1/common"
	"calman.com/worklog/model"
	"calman.com/worklog/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// UpdatePolicy decides how the store learns about a successful update.
type UpdatePolicy int

const (
	// UpdatePolicyRefetch re-reads the current view after every update.
	UpdatePolicyRefetch UpdatePolicy = iota
	// UpdatePolicyUpsertResponse upserts the record returned by the backend and
	// only re-reads when the response carries no record.
	UpdatePolicyUpsertResponse
)

func ParseUpdatePolicy(s string) (UpdatePolicy, error) {
	switch strings.ToLower(s) {
	case "", "refetch":
		return UpdatePolicyRefetch, nil
	case "upsert", "upsert-response":
		return UpdatePolicyUpsertResponse, nil
	}
	return UpdatePolicyRefetch, fmt.Errorf("unknown update policy %q", s)
}

func (p UpdatePolicy) String() string {
	if p == UpdatePolicyUpsertResponse {
		return "upsert-response"
	}
	return "refetch"
}

type importRequest struct {
	Filename string `json:"file" validate:"required"`
	CarModel string `json:"carModel" validate:"required"`
}

// MutationClient sends writes to the backend and applies confirmed results to
// the store. Nothing is retried automatically.
type MutationClient struct {
	api      WorkLogAPI
	store    *RecordStore
	query    *QueryClient
	session  *Session
	notifier Notifier
	logger   *zap.Logger
	policy   UpdatePolicy
	current  func() QueryContext
	now      func() time.Time
}

type MutationOption func(*MutationClient)

func WithUpdatePolicy(p UpdatePolicy) MutationOption {
	return func(m *MutationClient) {
		m.policy = p
	}
}

// WithQueryContext sets where the follow-up reads get their filter and sort.
func WithQueryContext(current func() QueryContext) MutationOption {
	return func(m *MutationClient) {
		m.current = current
	}
}

func NewMutationClient(api WorkLogAPI, store *RecordStore, query *QueryClient, session *Session, notifier Notifier, logger *zap.Logger, opts ...MutationOption) *MutationClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &MutationClient{
		api:      api,
		store:    store,
		query:    query,
		session:  session,
		notifier: notifier,
		logger:   logger,
		current:  NewQueryContext,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create stores the server-assigned record once the backend confirms it.
func (m *MutationClient) Create(ctx context.Context, req model.CreateRequest) (*model.WorkLog, error) {
	if err := m.validate(req); err != nil {
		return nil, err
	}

	created, err := m.api.Create(ctx, req)
	if err != nil {
		return nil, m.failed("create work log", "Failed to create work log", err)
	}

	record := *created
	if record.WorkDatetime == "" {
		// the backend answered with the id only
		if full, err := m.api.Get(ctx, created.ID); err == nil {
			record = *full
		} else {
			m.logger.Warn("read back of created work log failed", zap.Int64("id", created.ID), zap.Error(err))
			record = model.WorkLog{
				ID:           created.ID,
				WorkDatetime: req.WorkDatetime,
				CarModel:     req.CarModel,
				ProductColor: req.ProductColor,
				ProductCode:  req.ProductCode,
				ProductName:  req.ProductName,
				Quantity:     req.Quantity,
				CreatedAt:    utils.FormatISODateTime(m.now()),
			}
		}
	}

	m.store.Upsert(record)
	notify(m.notifier, LevelSuccess, "Work log created", DefaultNotice)
	return &record, nil
}

// Update sends all fields of the record. The store is refreshed according to the
// update policy; a failed follow-up read does not fail the update.
func (m *MutationClient) Update(ctx context.Context, id int64, req model.UpdateRequest) error {
	if err := m.validate(req); err != nil {
		return err
	}

	updated, err := m.api.Update(ctx, id, req)
	if err != nil {
		return m.failed(fmt.Sprintf("update work log %d", id), "Failed to update work log", err)
	}

	if m.policy == UpdatePolicyUpsertResponse && updated != nil {
		m.store.Upsert(*updated)
	} else {
		m.refresh(ctx)
	}
	notify(m.notifier, LevelSuccess, "Work log updated", DefaultNotice)
	return nil
}

// UpdateStatus toggles completion and applies the confirmed state locally.
func (m *MutationClient) UpdateStatus(ctx context.Context, id int64, completed bool) error {
	resp, err := m.api.UpdateStatus(ctx, id, completed)
	if err != nil {
		return m.failed(fmt.Sprintf("update status of work log %d", id), "Failed to change status", err)
	}

	at := m.now()
	if resp.CompletedAt != nil {
		if t, err := utils.ParseISOTime(*resp.CompletedAt); err == nil {
			at = *t
		}
	}
	actor := m.session.ClientID
	if resp.CompletedBy != nil && *resp.CompletedBy != "" {
		actor = *resp.CompletedBy
	}

	m.store.ApplyStatus(id, completed, actor, at)
	if completed {
		notify(m.notifier, LevelSuccess, "Marked as completed", DefaultNotice)
	} else {
		notify(m.notifier, LevelSuccess, "Marked as incomplete", DefaultNotice)
	}
	return nil
}

// UpdateWithStatus updates the record and then its status. The status request is
// only sent when the update succeeded.
func (m *MutationClient) UpdateWithStatus(ctx context.Context, id int64, req model.UpdateRequest, completed bool) error {
	if err := m.Update(ctx, id, req); err != nil {
		return err
	}
	return m.UpdateStatus(ctx, id, completed)
}

// DeleteMany deletes every id concurrently. The records are removed locally only
// when all deletes succeed; on any failure none are removed, even though the
// backend may already have deleted some of them.
func (m *MutationClient) DeleteMany(ctx context.Context, ids []int64) error {
	ids = utils.Unique(ids)
	if len(ids) == 0 {
		return nil
	}

	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			if err := m.api.Delete(ctx, id); err != nil {
				return fmt.Errorf("delete work log %d: %w", id, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return m.failed("delete work logs", "Failed to delete work logs", err)
	}

	m.store.RemoveByIDs(ids)
	notify(m.notifier, LevelSuccess, fmt.Sprintf("%d work logs deleted", len(ids)), DefaultNotice)
	return nil
}

// ImportBatch uploads a spreadsheet for carModel and reloads the view on success.
// A rejection carries the server's message when it sent one.
func (m *MutationClient) ImportBatch(ctx context.Context, filename string, r io.Reader, carModel string) (*common.UploadResponse, error) {
	if err := m.validate(importRequest{Filename: filename, CarModel: carModel}); err != nil {
		return nil, err
	}

	resp, err := m.api.Upload(ctx, filename, r, carModel)
	if err != nil {
		terr := &TransportError{Op: "import " + filename, Err: err}
		msg := terr.ServerMessage()
		if msg == "" {
			msg = "Import failed"
		}
		m.logger.Warn("import failed", zap.String("file", filename), zap.Error(err))
		notify(m.notifier, LevelError, msg, LongNotice)
		return nil, terr
	}
	if !resp.Success && resp.Redirect == "" {
		msg := resp.Message
		if msg == "" {
			msg = "Import failed"
		}
		notify(m.notifier, LevelError, msg, LongNotice)
		return resp, &TransportError{Op: "import " + filename, Err: errors.New(msg)}
	}

	msg := resp.Message
	if msg == "" {
		msg = fmt.Sprintf("Imported %d records", resp.TotalProcessed)
	}
	notify(m.notifier, LevelSuccess, msg, DefaultNotice)
	m.refresh(ctx)
	return resp, nil
}

func (m *MutationClient) refresh(ctx context.Context) {
	if _, err := m.query.FetchFiltered(ctx, m.current()); err != nil {
		m.logger.Warn("refresh after write failed", zap.Error(err))
	}
}

func (m *MutationClient) validate(payload any) error {
	if err := model.Validate(payload); err != nil {
		verr := newValidationError(err)
		notify(m.notifier, LevelWarning, verr.Message, DefaultNotice)
		return verr
	}
	return nil
}

func (m *MutationClient) failed(op, message string, err error) error {
	m.logger.Warn("write failed", zap.String("op", op), zap.Error(err))
	terr := &TransportError{Op: op, Err: err}
	notify(m.notifier, LevelError, message+": "+describeTransport(terr), DefaultNotice)
	return terr
}
