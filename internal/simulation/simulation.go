package simulation

import (
	"context"
	"math/rand"

	pl "github.com/HannahMarsh/PrettyLogger"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/adversary"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/data"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/errs"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/interfaces"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/metrics"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/simulation/allocator"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/simulation/detector"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/simulation/shuffle"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/simulation/suspicion"
	"github.com/HannahMarsh/shuffle-defense-simulation/pkg/utils"
	"github.com/HannahMarsh/shuffle-defense-simulation/pkg/utils/executor"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

// number of highest-risk users kept in a Result
const topSuspects = 5

// Instance is one fully wired simulation: the ground-truth adversary and the
// defender built around it.
type Instance struct {
	RunId     string
	P         data.Parameters
	Adversary *adversary.Adversary
	Manager   *shuffle.Manager
}

// NewInstance seeds everything from p.Seed, so equal parameters give equal
// runs.
func NewInstance(p data.Parameters) (*Instance, error) {
	seeds := rand.New(rand.NewSource(p.Seed))
	adversaryRand := rand.New(rand.NewSource(seeds.Int63()))
	shuffleRand := rand.New(rand.NewSource(seeds.Int63()))

	adv, users, err := adversary.New(adversaryRand, adversary.Params{
		Users:             p.Users,
		Attackers:         p.Attackers,
		AttackProbability: p.AttackProbability,
		RevealProbability: p.RevealProbability,
	})
	if err != nil {
		return nil, err
	}
	a, err := allocator.New(p.Capacity)
	if err != nil {
		return nil, err
	}
	d, err := detector.New(adv)
	if err != nil {
		return nil, err
	}
	t, err := suspicion.NewTracker(p.RiskConstant)
	if err != nil {
		return nil, err
	}

	runId := uuid.NewString()
	m, err := shuffle.NewManager(a, d, t, adv, shuffle.Options{
		RunId:              runId,
		RiskPerBucket:      p.RiskPerBucket,
		EvictIsolated:      p.EvictIsolated,
		ShuffleBeforeSplit: p.ShuffleBeforeSplit,
		StopWhenClean:      p.StopWhenClean,
		Rand:               shuffleRand,
		Observer:           adv,
	})
	if err != nil {
		return nil, err
	}
	if err = m.Populate(users); err != nil {
		return nil, pl.WrapError(err, "simulation.NewInstance(): failed to populate buckets")
	}
	return &Instance{
		RunId:     runId,
		P:         p,
		Adversary: adv,
		Manager:   m,
	}, nil
}

// Run executes a single simulation. sink, if not nil, sees every tick after
// the ground-truth counts were filled in.
func Run(ctx context.Context, p data.Parameters, sink interfaces.MetricsSink) (*data.Result, error) {
	inst, err := NewInstance(p)
	if err != nil {
		return nil, err
	}
	return inst.Run(ctx, sink)
}

func (inst *Instance) Run(ctx context.Context, sink interfaces.MetricsSink) (*data.Result, error) {
	rec := data.NewRecorder()
	reason, err := inst.Manager.Run(ctx, inst.P.MaxTicks, inst.Adversary.Sink(metrics.NewMulti(rec, sink)))
	if err != nil {
		return nil, pl.WrapError(err, "simulation.Run(): run %s failed", inst.RunId)
	}
	result := &data.Result{
		RunId:  inst.RunId,
		P:      inst.P,
		Ticks:  rec.Ticks(),
		Clean:  inst.Adversary.RemainingAttackers() == 0,
		Reason: string(reason),
		Suspects: utils.Map(inst.Manager.TopSuspects(topSuspects), func(s suspicion.Suspect) data.Suspect {
			return data.Suspect{User: int(s.Id), Risk: s.Risk}
		}),
	}
	last, report := result.Last(), inst.Manager.LastReport()
	slog.Info("run finished", "run", inst.RunId, "seed", inst.P.Seed, "ticks", last.Tick, "reason", reason,
		"remainingAttackers", inst.Adversary.RemainingAttackers(), "evictedBenign", inst.Adversary.EvictedBenign(), "buckets", last.Buckets,
		"lastAttacked", len(report.Attacked), "lastSplits", len(report.Splits))
	return result, nil
}

// RunMany executes runs independent simulations on a pool of workers. Run i
// uses seed p.Seed+i. sink is shared by all runs and must be safe for
// concurrent use.
func RunMany(ctx context.Context, p data.Parameters, runs, workers int, sink interfaces.MetricsSink) ([]*data.Result, error) {
	if err := errs.Positive("runs", runs); err != nil {
		return nil, err
	}
	if err := errs.Positive("workers", workers); err != nil {
		return nil, err
	}
	pool := executor.NewWorkerPoolWithMax(workers)
	defer pool.Stop()

	futures := make([]*executor.Future[*data.Result], runs)
	for i := 0; i < runs; i++ {
		pi := p
		pi.Seed = p.Seed + int64(i)
		futures[i] = executor.SubmitWithError(pool, nil, func() (*data.Result, error) {
			return Run(ctx, pi, sink)
		})
	}
	results, err := executor.GetAll(futures)
	if err != nil {
		return nil, pl.WrapError(err, "simulation.RunMany(): %d runs", runs)
	}
	return results, nil
}
