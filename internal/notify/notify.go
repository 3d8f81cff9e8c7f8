// Package notify abstracts user-visible notifications so the core never
// depends on a particular UI surface.
package notify

import "log/slog"

// Notifier receives user-facing messages about upload outcomes. Desktop
// builds plug in a tray/toast implementation; the daemon uses LogNotifier.
type Notifier interface {
	UploadSuccess(fileName, repoID string)
	UploadFailure(fileName, repoID string)
}

// LogNotifier surfaces notifications through structured logs.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) UploadSuccess(fileName, repoID string) {
	n.Logger.Info("upload success",
		slog.String("file", fileName), slog.String("repo_id", repoID))
}

func (n LogNotifier) UploadFailure(fileName, repoID string) {
	n.Logger.Warn("upload failure",
		slog.String("file", fileName), slog.String("repo_id", repoID))
}
