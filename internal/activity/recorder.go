package activity

import (
	"context"
	"log/slog"

	"github.com/pentora/pentora/internal/auth"
)

// RecorderStore is the persistence surface the recorder writes through.
type RecorderStore interface {
	InsertEntry(ctx context.Context, e Entry) error
	UpsertSession(ctx context.Context, userID int64, sessionID, ip, ua string) error
	TouchSession(ctx context.Context, sessionID string) error
	CloseSession(ctx context.Context, sessionID string) error
	InsertAssetEntry(ctx context.Context, e AssetEntry) error
}

// Recorder writes activity records without ever failing the caller. A broken
// activity store degrades to warnings in the server log.
type Recorder struct {
	logger *slog.Logger
	store  RecorderStore
}

// NewRecorder constructs a Recorder.
func NewRecorder(logger *slog.Logger, store RecorderStore) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{logger: logger, store: store}
}

// Log stores a general activity entry.
func (r *Recorder) Log(ctx context.Context, e Entry) {
	if err := r.store.InsertEntry(ctx, e); err != nil {
		r.logger.Warn("record activity", slog.String("type", e.ActivityType), slog.String("action", e.Action), slog.Any("error", err))
	}
}

// LogAsset stores an asset activity entry.
func (r *Recorder) LogAsset(ctx context.Context, e AssetEntry) {
	if err := r.store.InsertAssetEntry(ctx, e); err != nil {
		r.logger.Warn("record asset activity", slog.Int64("asset", e.AssetID), slog.Any("error", err))
	}
}

// RecordLogin opens a session row and logs the login.
func (r *Recorder) RecordLogin(ctx context.Context, user *auth.User, token, ip, ua string) {
	if err := r.store.UpsertSession(ctx, user.ID, token, ip, ua); err != nil {
		r.logger.Warn("record session", slog.Any("error", err))
	}
	r.Log(ctx, Entry{
		UserID:       user.ID,
		ActivityType: TypeAuth,
		Action:       ActionLogin,
		Details:      map[string]any{"username": user.Username, "role": string(user.Role)},
		IPAddress:    ip,
		UserAgent:    ua,
		SessionID:    token,
	})
}

// RecordLoginFailure logs a rejected login attempt. Failed attempts have no
// user row to attach, so they go to the server log only.
func (r *Recorder) RecordLoginFailure(ctx context.Context, username, reason, ip, ua string) {
	r.logger.Info("login rejected",
		slog.String("username", username),
		slog.String("reason", reason),
		slog.String("ip", ip),
		slog.String("user_agent", ua))
}

// RecordLogout closes the session row and logs the logout.
func (r *Recorder) RecordLogout(ctx context.Context, user *auth.User, token, ip, ua string) {
	if err := r.store.CloseSession(ctx, token); err != nil {
		r.logger.Warn("close session", slog.Any("error", err))
	}
	if user == nil {
		return
	}
	r.Log(ctx, Entry{
		UserID:       user.ID,
		ActivityType: TypeAuth,
		Action:       ActionLogout,
		Details:      map[string]any{"username": user.Username},
		IPAddress:    ip,
		UserAgent:    ua,
		SessionID:    token,
	})
}

// TouchSession bumps last-activity for the session.
func (r *Recorder) TouchSession(ctx context.Context, token string) {
	if err := r.store.TouchSession(ctx, token); err != nil {
		r.logger.Warn("touch session", slog.Any("error", err))
	}
}
