package release

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/ralt/pkgbuilder/internal/assembler"
	"github.com/ralt/pkgbuilder/internal/collect"
	"github.com/ralt/pkgbuilder/internal/dispatch"
	"github.com/ralt/pkgbuilder/internal/models"
	"github.com/ralt/pkgbuilder/internal/signer"
	"github.com/sirupsen/logrus"
)

// Observer is called once for every package that reaches a terminal state
type Observer func(pkg *models.Package)

type options struct {
	signer    signer.Signer
	observer  Observer
	onListen  func(net.Addr)
	resolver  dispatch.Resolver
	assembler []assembler.Option
}

// Option customises a run
type Option func(*options)

// WithSigner signs every finished bundle
func WithSigner(s signer.Signer) Option {
	return func(o *options) {
		o.signer = s
	}
}

// WithObserver reports each package as it finishes
func WithObserver(fn Observer) Option {
	return func(o *options) {
		o.observer = fn
	}
}

// WithListenHook is called with the collector's bound address before the
// first job is dispatched
func WithListenHook(fn func(net.Addr)) Option {
	return func(o *options) {
		o.onListen = fn
	}
}

// WithDialResolver replaces the dispatcher's resolver
func WithDialResolver(r dispatch.Resolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}

// WithAssemblerOptions forwards options to the assembler
func WithAssemblerOptions(opts ...assembler.Option) Option {
	return func(o *options) {
		o.assembler = append(o.assembler, opts...)
	}
}

// Result is the outcome of one package
type Result struct {
	Package *models.Package
	State   models.State
	Bundle  string
	Err     error
}

// Report lists the outcome of every package in catalog order
type Report struct {
	Results []*Result
}

// Done returns the number of packages that produced a bundle
func (r *Report) Done() int {
	n := 0
	for _, res := range r.Results {
		if res.State == models.StateDone {
			n++
		}
	}
	return n
}

// Err summarises every package that did not finish, or returns nil
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.State != models.StateDone {
			errs = append(errs, res.Err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d packages did not complete: %w", len(errs), len(r.Results), errors.Join(errs...))
}

type run struct {
	opts    options
	results map[*models.Package]*Result
}

func (r *run) finish(pkg *models.Package, bundle string, err error) {
	res := r.results[pkg]
	res.State = pkg.State()
	res.Bundle = bundle
	if err != nil {
		res.Err = err
	}
	if res.Err == nil {
		switch res.State {
		case models.StateTimedOut:
			res.Err = models.TransportError(pkg.Name(), fmt.Errorf("no response from %s", pkg.BuildServer))
		case models.StateDone:
		default:
			res.Err = models.AssemblyError(pkg.Name(), fmt.Errorf("ended in state %s", res.State))
		}
	}
	if r.opts.observer != nil {
		r.opts.observer(pkg)
	}
}

// Run builds every package: binary packages are dispatched to their build
// hosts, source packages are assembled locally, and results are collected
// until every package is resolved. A failing package never stops its
// siblings; the returned error summarises all that did not finish.
func Run(ctx context.Context, cfg *models.BuildConfig, packages []*models.Package, opts ...Option) (*Report, error) {
	r := &run{results: make(map[*models.Package]*Result, len(packages))}
	for _, opt := range opts {
		opt(&r.opts)
	}

	report := &Report{}
	var binaries, sources []*models.Package
	for _, pkg := range packages {
		res := &Result{Package: pkg, State: pkg.State()}
		r.results[pkg] = res
		report.Results = append(report.Results, res)
		if pkg.Binary {
			binaries = append(binaries, pkg)
		} else {
			sources = append(sources, pkg)
		}
	}

	asmOpts := append([]assembler.Option(nil), r.opts.assembler...)
	if r.opts.signer != nil {
		asmOpts = append(asmOpts, assembler.WithSigner(r.opts.signer))
	}
	asm := assembler.New(cfg, asmOpts...)

	// Remote results, filled by the collector's handler
	bundles := make(map[*models.Package]string)
	errs := make(map[*models.Package]error)
	handle := func(ctx context.Context, pkg *models.Package) error {
		bundle, err := asm.PostProcess(ctx, pkg)
		bundles[pkg] = bundle
		errs[pkg] = err
		return err
	}

	var collector *collect.Collector
	if len(binaries) > 0 {
		var err error
		collector, err = collect.Listen(cfg, collect.WithObserver(func(pkg *models.Package) {
			r.finish(pkg, bundles[pkg], errs[pkg])
		}))
		if err != nil {
			return nil, err
		}
		defer collector.Close()
		if r.opts.onListen != nil {
			r.opts.onListen(collector.Addr())
		}

		var dispatchOpts []dispatch.Option
		if r.opts.resolver != nil {
			dispatchOpts = append(dispatchOpts, dispatch.WithResolver(r.opts.resolver))
		}
		dispatcher := dispatch.NewDispatcher(cfg, asm, dispatchOpts...)

		for _, pkg := range binaries {
			job, err := dispatcher.Dispatch(ctx, pkg)
			if err != nil {
				logrus.WithField("package", pkg.Name()).Errorf("Dispatch failed: %v", err)
				r.finish(pkg, "", err)
				continue
			}
			if err := collector.Expect(job); err != nil {
				if terr := pkg.Transition(models.StateFailed); terr != nil {
					logrus.Debug(terr)
				}
				r.finish(pkg, "", err)
			}
		}
	}

	for _, pkg := range sources {
		if err := asm.Prepare(ctx, pkg); err != nil {
			r.finish(pkg, "", err)
			continue
		}
		bundle, err := asm.PostProcess(ctx, pkg)
		r.finish(pkg, bundle, err)
	}

	if collector != nil && collector.Pending() > 0 {
		if err := collector.Run(ctx, handle); err != nil {
			logrus.Errorf("Collection stopped: %v", err)
		}
	}

	if err := report.Err(); err != nil {
		return report, err
	}
	logrus.Infof("All %d packages built", len(packages))
	return report, nil
}
