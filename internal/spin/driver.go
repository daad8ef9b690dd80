// Package spin drains a balance through the reward wheel, stepping down a
// ladder of bet sizes as each one becomes unaffordable.
package spin

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"engageflow/config"
	"engageflow/internal/metrics"
	"engageflow/internal/notifier"
	"engageflow/internal/retry"
	"engageflow/logger"
	"engageflow/models"
)

// ErrRemote wraps any reported error that ends a spin loop.
var ErrRemote = errors.New("spin: remote error")

// Spinner places one wager.
type Spinner interface {
	Spin(ctx context.Context, req models.SpinRequest) models.SpinOutcome
}

// Result describes a finished loop. Err is nil when the loop ended because
// every bet became unaffordable.
type Result struct {
	Wins   int
	Payout float64
	Err    error
}

type Driver struct {
	spinner Spinner
	sink    notifier.Sink
	cfg     config.SpinConfig
	sleep   retry.SleepFunc
	wait    retry.SleepFunc
	log     *logger.Entry
}

type Option func(*Driver)

// WithSleep replaces the wait used after wins and between transient retries.
func WithSleep(fn retry.SleepFunc) Option {
	return func(d *Driver) {
		d.sleep = fn
		d.wait = fn
	}
}

func NewDriver(spinner Spinner, cfg config.SpinConfig, sink notifier.Sink, opts ...Option) (*Driver, error) {
	if _, err := NewLadder(cfg.Bets); err != nil {
		return nil, err
	}
	d := &Driver{
		spinner: spinner,
		sink:    notifier.OrNop(sink),
		cfg:     cfg,
		sleep:   retry.Sleep,
		log:     logger.GetLogger().WithComponent("spin_driver"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Run spins until the ladder is exhausted, a reported error occurs or ctx
// ends.
func (d *Driver) Run(ctx context.Context) Result {
	d.emit("⏳ Starting Smart Drain Loop...", notifier.Blue)

	res := d.drain(ctx)
	if ctx.Err() == nil {
		d.emit("🏁 Session Finished.", notifier.Bold)
	}

	d.log.WithFields(logger.Fields{
		"wins":   res.Wins,
		"payout": res.Payout,
	}).WithError(res.Err).Info("spin loop finished")
	d.log.LogMetric("spin_driver", "spin_wins", res.Wins, "counter", d.metricFields())
	d.log.LogMetric("spin_driver", "spin_payout", res.Payout, "gauge", d.metricFields())
	return res
}

func (d *Driver) drain(ctx context.Context) Result {
	var res Result
	ladder, err := NewLadder(d.cfg.Bets)
	if err != nil {
		res.Err = err
		return res
	}

	for {
		bet, ok := ladder.Current()
		if !ok {
			return res
		}

		outcome, err := d.spinOnce(ctx, bet)
		if err != nil {
			res.Err = err
			return res
		}

		switch outcome.Kind {
		case models.OutcomeWin:
			payout := float64(bet) * outcome.Multiplier
			res.Wins++
			res.Payout += payout
			metrics.ObserveSpin(outcome.Kind.String(), payout)
			d.emit(fmt.Sprintf(" %s[#%03d]%s %sWIN%s | %s%s%s | Payout: %s",
				notifier.Cyan, res.Wins, notifier.End,
				notifier.Green, notifier.End,
				notifier.Bold, outcome.RewardLabel(), notifier.End,
				strconv.FormatFloat(payout, 'f', -1, 64)), "")
			if err := d.sleep(ctx, d.cfg.WinDelay); err != nil {
				res.Err = err
				return res
			}

		case models.OutcomeInsufficientBalance:
			metrics.ObserveSpin(outcome.Kind.String(), 0)
			next, ok := ladder.Advance()
			d.log.WithFields(logger.Fields{"bet": bet, "next": next}).Debug("insufficient balance")
			if ok {
				d.emit(fmt.Sprintf("📉 Switching to %d...", next), notifier.Yellow)
			}

		default:
			metrics.ObserveSpin(outcome.Kind.String(), 0)
			msg := outcome.Message
			if outcome.Kind == models.OutcomeTransientFailure && outcome.Err != nil {
				msg = outcome.Err.Error()
			}
			d.emit(fmt.Sprintf("❌ Error: %s", msg), notifier.Red)
			d.log.WithFields(logger.Fields{"bet": bet, "outcome": outcome.Kind.String()}).Error(msg)
			res.Err = fmt.Errorf("%w: %s", ErrRemote, msg)
			return res
		}
	}
}

// spinOnce places one wager, retrying transient failures. The returned
// outcome is only transient when every retry failed.
func (d *Driver) spinOnce(ctx context.Context, bet int64) (models.SpinOutcome, error) {
	req := models.SpinRequest{
		Game: d.cfg.Game,
		Bet:  models.SpinBet{Amount: bet, Currency: d.cfg.Currency},
	}

	var outcome models.SpinOutcome
	policy := retry.Policy{
		Attempts: 1 + d.cfg.MaxTransientRetries,
		Delay:    d.cfg.RetryDelay,
		Sleep:    d.wait,
		OnRetry: func(failed int) {
			d.log.WithError(outcome.Err).WithField("retry", failed).Warn("transient spin failure")
			d.emit(fmt.Sprintf("⚠️ Network Glitch. Retrying %d...", failed), notifier.Yellow)
		},
	}

	_, err := policy.Do(ctx, func(int) bool {
		outcome = d.spinner.Spin(ctx, req)
		return outcome.Kind != models.OutcomeTransientFailure
	})
	if err == nil {
		err = ctx.Err()
	}
	return outcome, err
}

func (d *Driver) metricFields() logger.Fields {
	return logger.Fields{"game": d.cfg.Game, "currency": d.cfg.Currency}
}

func (d *Driver) emit(message, color string) {
	_ = d.sink.Emit(notifier.NewEvent(message, color, false))
}
