// Package registry maps config-supplied class-name strings to
// constructor closures for the three pluggable families the executor
// needs: loss criterion, optimizer, and learning-rate scheduler. Using
// an explicit, typed registry instead of dynamic resolution-by-name
// means unknown names surface as a Config error rather than a
// reflection failure.
package registry

import (
	"fmt"

	"github.com/plandes/dltools/pkg/dlerrors"
	"github.com/plandes/dltools/pkg/loss"
	"github.com/plandes/dltools/pkg/optimizers"
)

// Scheduler is the minimal contract every pkg/optimizers scheduler type
// satisfies structurally: advance one epoch, return the new learning
// rate.
type Scheduler interface {
	Step() float64
}

// OptimizerCtor builds an Optimizer from a learning rate and a generic
// options bag (e.g. {"beta1": "0.9"}); unused keys are ignored by
// constructors that don't need them.
type OptimizerCtor func(lr float64, opts map[string]string) (optimizers.Optimizer, error)

// SchedulerCtor builds a Scheduler from the same kind of options bag.
type SchedulerCtor func(initialLR float64, opts map[string]string) (Scheduler, error)

// Registry holds the optimizer and scheduler name->constructor maps;
// criteria are resolved by Criterion without a map. A zero-value Registry
// is empty; use New() to get one pre-populated with this module's
// built-in optimizers/schedulers.
type Registry struct {
	optimizers map[string]OptimizerCtor
	schedulers map[string]SchedulerCtor
}

func New() *Registry {
	r := &Registry{
		optimizers: make(map[string]OptimizerCtor),
		schedulers: make(map[string]SchedulerCtor),
	}
	r.registerBuiltins()
	return r
}

func (r *Registry) RegisterOptimizer(name string, ctor OptimizerCtor) {
	r.optimizers[name] = ctor
}

func (r *Registry) RegisterScheduler(name string, ctor SchedulerCtor) {
	r.schedulers[name] = ctor
}

func (r *Registry) Optimizer(name string, lr float64, opts map[string]string) (optimizers.Optimizer, error) {
	ctor, ok := r.optimizers[name]
	if !ok {
		return nil, dlerrors.New(dlerrors.KindConfig, "unknown optimizer: "+name)
	}
	return ctor(lr, opts)
}

func (r *Registry) Scheduler(name string, lr float64, opts map[string]string) (Scheduler, error) {
	ctor, ok := r.schedulers[name]
	if !ok {
		return nil, dlerrors.New(dlerrors.KindConfig, "unknown scheduler: "+name)
	}
	return ctor(lr, opts)
}

// Criterion resolves a loss function name. Loss construction needs no
// options today, so it is a thin pass-through to loss.Build's name
// validation rather than its own map.
func (r *Registry) Criterion(name string) (loss.Func, error) {
	switch loss.Func(name) {
	case loss.MSE, loss.CrossEntropy:
		return loss.Func(name), nil
	default:
		return "", dlerrors.New(dlerrors.KindConfig, "unknown criterion: "+name)
	}
}

func optFloat(opts map[string]string, key string, def float64) float64 {
	v, ok := opts[key]
	if !ok {
		return def
	}
	var f float64
	if _, err := fmt.Sscan(v, &f); err != nil {
		return def
	}
	return f
}

func optInt(opts map[string]string, key string, def int) int {
	v, ok := opts[key]
	if !ok {
		return def
	}
	var i int
	if _, err := fmt.Sscan(v, &i); err != nil {
		return def
	}
	return i
}

func (r *Registry) registerBuiltins() {
	r.RegisterOptimizer("sgd", func(lr float64, _ map[string]string) (optimizers.Optimizer, error) {
		return optimizers.NewSGD(lr), nil
	})
	r.RegisterOptimizer("momentum", func(lr float64, opts map[string]string) (optimizers.Optimizer, error) {
		return optimizers.NewMomentum(lr, optFloat(opts, "mu", 0.9)), nil
	})
	r.RegisterOptimizer("adam", func(lr float64, opts map[string]string) (optimizers.Optimizer, error) {
		return optimizers.NewAdam(
			lr,
			optFloat(opts, "beta1", 0.9),
			optFloat(opts, "beta2", 0.999),
			optFloat(opts, "epsilon", 1e-8),
		), nil
	})
	r.RegisterOptimizer("rmsprop", func(lr float64, opts map[string]string) (optimizers.Optimizer, error) {
		return optimizers.NewRMSProp(lr, optFloat(opts, "alpha", 0.99), optFloat(opts, "epsilon", 1e-8)), nil
	})

	r.RegisterScheduler("step", func(lr float64, opts map[string]string) (Scheduler, error) {
		return optimizers.NewStepLR(lr, optFloat(opts, "gamma", 0.1), optInt(opts, "step_size", 10)), nil
	})
	r.RegisterScheduler("exponential", func(lr float64, opts map[string]string) (Scheduler, error) {
		return optimizers.NewExponentialLR(lr, optFloat(opts, "gamma", 0.95)), nil
	})
	r.RegisterScheduler("cosine", func(lr float64, opts map[string]string) (Scheduler, error) {
		return optimizers.NewCosineAnnealingLR(lr, optInt(opts, "t_max", 10), optFloat(opts, "eta_min", 0)), nil
	})
	r.RegisterScheduler("one_cycle", func(lr float64, opts map[string]string) (Scheduler, error) {
		return optimizers.NewOneCycleLR(lr, optFloat(opts, "max_lr", lr*10), optInt(opts, "max_epochs", 10), optFloat(opts, "final_lr", lr/100)), nil
	})
	r.RegisterScheduler("plateau", func(lr float64, opts map[string]string) (Scheduler, error) {
		return optimizers.NewReduceLROnPlateau(
			lr,
			optFloat(opts, "factor", 0.1),
			optInt(opts, "patience", 3),
			optFloat(opts, "min_lr", 0),
		), nil
	})
}
