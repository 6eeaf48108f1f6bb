package dispatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ralt/pkgbuilder/internal/archive"
	"github.com/ralt/pkgbuilder/internal/models"
	"github.com/rs/dnscache"
	"github.com/sirupsen/logrus"
)

// Preparer creates a package's working tree
type Preparer interface {
	Prepare(ctx context.Context, pkg *models.Package) error
}

// Job is a payload handed to a build host
type Job struct {
	Package      *models.Package
	Ticket       string
	DispatchedAt time.Time
	Bytes        int64
}

// Dispatcher sends binary packages to their build hosts
type Dispatcher struct {
	preparer     Preparer
	dialer       *hostDialer
	packageRoot  string
	qtVersion    string
	writeTimeout time.Duration
	newTicket    func() string
	now          func() time.Time
}

// Option customises a Dispatcher
type Option func(*Dispatcher)

// WithResolver replaces the caching DNS resolver
func WithResolver(r Resolver) Option {
	return func(d *Dispatcher) {
		d.dialer.resolver = r
	}
}

// WithTicketFunc replaces the ticket generator
func WithTicketFunc(fn func() string) Option {
	return func(d *Dispatcher) {
		d.newTicket = fn
	}
}

// NewDispatcher creates a dispatcher for one run
func NewDispatcher(cfg *models.BuildConfig, preparer Preparer, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		preparer:     preparer,
		dialer:       newHostDialer(cfg.ServerPort, cfg.DialRetries, cfg.DialTimeout, &dnscache.Resolver{}),
		packageRoot:  cfg.PackageRoot,
		qtVersion:    cfg.QtVersion,
		writeTimeout: cfg.ReadTimeout,
		newTicket:    NewTicket,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch prepares pkg, packs its tree with a build script and a fresh
// ticket, and streams it to the package's build host. It does not wait for
// the build; the result comes back through the collector.
func (d *Dispatcher) Dispatch(ctx context.Context, pkg *models.Package) (*Job, error) {
	log := logrus.WithField("package", pkg.Name())
	log.Info("Packaging and sending...")

	if !pkg.Binary || pkg.BuildServer == "" {
		return nil, models.ConfigError(fmt.Errorf("package %s has no build server", pkg.Name()))
	}

	if err := d.preparer.Prepare(ctx, pkg); err != nil {
		return nil, err
	}

	log.Debug("Creating task script")
	script, err := BuildScript(pkg, d.qtVersion)
	if err != nil {
		return nil, d.fail(pkg, err)
	}
	if _, err := script.Write(pkg.StageDir); err != nil {
		return nil, d.fail(pkg, models.AssemblyError(pkg.Name(), err))
	}

	ticket := d.newTicket()
	if err := WriteTicket(pkg.StageDir, ticket); err != nil {
		return nil, d.fail(pkg, models.AssemblyError(pkg.Name(), err))
	}

	payload := d.PayloadPath(pkg)
	log.Debug("Compressing...")
	if err := archive.Compress(ctx, payload, pkg.StageDir); err != nil {
		return nil, d.fail(pkg, models.AssemblyError(pkg.Name(), err))
	}

	log.Debugf("Sending to host: %s", pkg.BuildServer)
	n, err := d.send(ctx, pkg.BuildServer, payload)
	if err != nil {
		return nil, d.fail(pkg, models.TransportError(pkg.Name(), err))
	}

	if err := pkg.Transition(models.StateDispatched); err != nil {
		return nil, d.fail(pkg, err)
	}
	log.Infof("Sent %d bytes to %s (ticket %s)", n, pkg.BuildServer, ticket)

	return &Job{
		Package:      pkg,
		Ticket:       ticket,
		DispatchedAt: d.now(),
		Bytes:        n,
	}, nil
}

// PayloadPath returns root/.<name>.job.tar.zst
func (d *Dispatcher) PayloadPath(pkg *models.Package) string {
	return filepath.Join(d.packageRoot, "."+pkg.Name()+".job"+archive.Extension)
}

// send streams the payload over one connection and closes it
func (d *Dispatcher) send(ctx context.Context, host, payload string) (int64, error) {
	if _, err := os.Stat(payload); err != nil {
		return 0, err
	}

	conn, err := d.dialer.Dial(ctx, host)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to %s: %w", host, err)
	}
	defer conn.Close()

	if d.writeTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(d.writeTimeout)); err != nil {
			return 0, err
		}
	}

	n, err := archive.SendStream(conn, payload)
	if err != nil {
		return n, err
	}
	return n, conn.Close()
}

func (d *Dispatcher) fail(pkg *models.Package, err error) error {
	if terr := pkg.Transition(models.StateFailed); terr != nil {
		logrus.Debug(terr)
	}
	return err
}
