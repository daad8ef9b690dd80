// Package campaign walks platform campaigns and completes their tasks.
package campaign

import (
	"context"
	"fmt"

	"engageflow/config"
	"engageflow/internal/notifier"
	"engageflow/internal/retry"
	"engageflow/logger"
	"engageflow/models"
)

// Remote is the part of the platform client the driver needs.
type Remote interface {
	Validator
	ListCampaigns(ctx context.Context) ([]models.Campaign, error)
	StartCampaign(ctx context.Context, userID, campaignID string) error
	CampaignDocument(ctx context.Context, userID, campaignID string) (*models.CampaignDocument, error)
	DisconnectSocial(ctx context.Context, provider string) (bool, string, error)
}

// Summary counts what a run did.
type Summary struct {
	Campaigns int
	Processed int
	Validated int
	Skipped   int
	Failed    int
}

func (s *Summary) add(r TaskResult) {
	switch r {
	case TaskValidated:
		s.Validated++
	case TaskSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
}

type Driver struct {
	remote    Remote
	sink      notifier.Sink
	walker    *Walker
	seeds     []config.CampaignSeed
	providers []string
	log       *logger.Entry
}

type Option func(*driverOptions)

type driverOptions struct {
	sleep retry.SleepFunc
}

// WithSleep replaces the backoff timer used between validate attempts.
func WithSleep(fn retry.SleepFunc) Option {
	return func(o *driverOptions) { o.sleep = fn }
}

func NewDriver(remote Remote, cfg config.CampaignConfig, sink notifier.Sink, opts ...Option) *Driver {
	var o driverOptions
	for _, opt := range opts {
		opt(&o)
	}
	sink = notifier.OrNop(sink)

	policy := retry.Policy{
		Attempts: cfg.MaxValidateAttempts,
		Delay:    cfg.ValidateDelay,
		Sleep:    o.sleep,
	}

	return &Driver{
		remote:    remote,
		sink:      sink,
		walker:    NewWalker(remote, sink, cfg.SkipTaskKeywords, policy),
		seeds:     cfg.Seeds,
		providers: cfg.SocialProviders,
		log:       logger.GetLogger().WithComponent("campaign_driver"),
	}
}

// Run drives every seed and live campaign for userID, then disconnects the
// configured social providers. Only cancellation stops a run early.
func (d *Driver) Run(ctx context.Context, userID string) (Summary, error) {
	var summary Summary
	log := d.log.WithField("user_id", userID)

	d.emit(fmt.Sprintf("👤 UID: %s", userID), notifier.Yellow)

	identities := d.Identities(ctx)
	summary.Campaigns = identities.Len()
	log.WithField("campaigns", summary.Campaigns).Info("starting campaign run")

	for _, id := range identities.All() {
		processed, err := d.ProcessCampaign(ctx, userID, id, &summary)
		if err != nil {
			return summary, err
		}
		if processed {
			summary.Processed++
		}
	}

	d.emit("⏳ Disconnecting Socials...", notifier.Blue)
	for _, provider := range d.providers {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		ok, msg, err := d.remote.DisconnectSocial(ctx, provider)
		log.WithFields(logger.Fields{"provider": provider, "ok": ok, "message": msg}).WithError(err).Debug("social disconnect")
	}

	d.emit("✨ All tasks complete!", notifier.Green)
	log.WithFields(logger.Fields{
		"processed": summary.Processed,
		"validated": summary.Validated,
		"skipped":   summary.Skipped,
		"failed":    summary.Failed,
	}).Info("campaign run finished")
	d.log.LogMetric("campaign_driver", "tasks_validated", summary.Validated, "counter", nil)
	d.log.LogMetric("campaign_driver", "tasks_skipped", summary.Skipped, "counter", nil)
	d.log.LogMetric("campaign_driver", "tasks_failed", summary.Failed, "counter", nil)
	return summary, nil
}

// Identities merges the configured seeds with the live campaign listing.
// A failed listing leaves only the seeds.
func (d *Driver) Identities(ctx context.Context) *IdentitySet {
	set := NewIdentitySet()
	for _, seed := range d.seeds {
		set.Add(seed.ID, seed.Label)
	}

	discovered, err := d.remote.ListCampaigns(ctx)
	if err != nil {
		d.log.WithError(err).Warn("campaign listing unavailable; using seeds only")
		return set
	}
	set.Merge(discovered)
	return set
}

// ProcessCampaign runs one campaign. It reports false when the campaign was
// abandoned because its document was missing or held no tasks.
func (d *Driver) ProcessCampaign(ctx context.Context, userID string, id Identity, summary *Summary) (bool, error) {
	log := d.log.WithFields(logger.Fields{"user_id": userID, "campaign_id": id.ID})

	if err := d.remote.StartCampaign(ctx, userID, id.ID); err != nil {
		log.WithError(err).Debug("start campaign not accepted")
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	doc, err := d.remote.CampaignDocument(ctx, userID, id.ID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		log.WithError(err).Info("campaign document unavailable; skipping")
		return false, nil
	}
	tasks := doc.Tasks()
	if len(tasks) == 0 {
		log.Debug("campaign has no tasks; skipping")
		return false, nil
	}

	outstanding := Reconcile(tasks, doc.Progress())
	progress := fmt.Sprintf("%d/%d", len(tasks)-len(outstanding), len(tasks))
	d.emit(fmt.Sprintf("   %s🔥 %-25s%s | Progress: %s%s%s",
		notifier.Cyan, id.Title, notifier.End, notifier.Yellow, progress, notifier.End), "")

	for _, task := range outstanding {
		result, err := d.walker.Complete(ctx, userID, id.ID, task)
		if err != nil {
			return true, err
		}
		if summary != nil {
			summary.add(result)
		}
	}
	return true, nil
}

func (d *Driver) emit(message, color string) {
	_ = d.sink.Emit(notifier.NewEvent(message, color, false))
}
