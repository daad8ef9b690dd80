package campaign

import (
	"context"
	"fmt"
	"strings"

	"engageflow/internal/metrics"
	"engageflow/internal/notifier"
	"engageflow/internal/retry"
	"engageflow/logger"
	"engageflow/models"
)

// TaskResult is the final state of one outstanding task after a walk.
type TaskResult int

const (
	TaskValidated TaskResult = iota
	TaskSkipped
	TaskFailed
)

func (r TaskResult) String() string {
	switch r {
	case TaskValidated:
		return "validated"
	case TaskSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

const titleWidth = 30

// Validator marks a single task as complete.
type Validator interface {
	ValidateTask(ctx context.Context, userID, campaignID, taskID string) (bool, error)
}

// Walker completes outstanding tasks one at a time.
type Walker struct {
	remote   Validator
	sink     notifier.Sink
	denylist []string
	policy   retry.Policy
	log      *logger.Entry
}

// NewWalker builds a walker. denylist phrases are matched as
// case-insensitive substrings of task titles.
func NewWalker(remote Validator, sink notifier.Sink, denylist []string, policy retry.Policy) *Walker {
	lowered := make([]string, 0, len(denylist))
	for _, phrase := range denylist {
		if phrase = strings.TrimSpace(phrase); phrase != "" {
			lowered = append(lowered, strings.ToLower(phrase))
		}
	}
	return &Walker{
		remote:   remote,
		sink:     notifier.OrNop(sink),
		denylist: lowered,
		policy:   policy,
		log:      logger.GetLogger().WithComponent("campaign_walker"),
	}
}

// ShouldSkip reports whether a task can not be completed automatically.
func (w *Walker) ShouldSkip(title string) bool {
	title = strings.ToLower(title)
	for _, phrase := range w.denylist {
		if strings.Contains(title, phrase) {
			return true
		}
	}
	return false
}

// Complete drives one task to validation. The returned error is only ever
// a context error; running out of attempts is reported as TaskFailed.
func (w *Walker) Complete(ctx context.Context, userID, campaignID string, task models.Task) (TaskResult, error) {
	if w.ShouldSkip(task.Title) {
		w.log.WithFields(logger.Fields{"campaign_id": campaignID, "task_id": task.ID}).Debug("skipping task")
		metrics.ObserveTaskResult(TaskSkipped.String())
		return TaskSkipped, nil
	}

	short := truncate(task.Title, titleWidth)
	attempts := w.policy.Attempts

	ok, err := w.policy.Do(ctx, func(attempt int) bool {
		status := ""
		if attempt > 1 {
			status = fmt.Sprintf(" (%d/%d)", attempt, attempts)
		}
		w.emit(fmt.Sprintf("      %s⚡ %s...%s%s", notifier.Yellow, short, status, notifier.End), notifier.Yellow, true)

		valid, err := w.remote.ValidateTask(ctx, userID, campaignID, task.ID)
		if err != nil {
			w.log.WithError(err).WithFields(logger.Fields{
				"campaign_id": campaignID,
				"task_id":     task.ID,
				"attempt":     attempt,
			}).Debug("validate call failed")
		}
		return valid
	})
	if err != nil {
		return TaskFailed, err
	}

	if ok {
		w.emit(fmt.Sprintf("      %s✅ %s...      %s", notifier.Green, short, notifier.End), notifier.Green, false)
		metrics.ObserveTaskResult(TaskValidated.String())
		return TaskValidated, nil
	}

	w.emit(fmt.Sprintf("      %s❌ %s...      %s", notifier.Red, short, notifier.End), notifier.Red, false)
	w.log.WithFields(logger.Fields{"campaign_id": campaignID, "task_id": task.ID, "attempts": attempts}).Warn("task not validated")
	metrics.ObserveTaskResult(TaskFailed.String())
	return TaskFailed, nil
}

func (w *Walker) emit(message, color string, sameLine bool) {
	_ = w.sink.Emit(notifier.NewEvent(message, color, sameLine))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
