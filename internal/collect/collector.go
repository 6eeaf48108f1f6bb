package collect

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/ralt/pkgbuilder/internal/archive"
	"github.com/ralt/pkgbuilder/internal/dispatch"
	"github.com/ralt/pkgbuilder/internal/models"
	"github.com/sirupsen/logrus"
)

// pollInterval bounds how long one Accept blocks, so cancellation and
// package deadlines are noticed promptly
const pollInterval = 500 * time.Millisecond

// Handler post-processes a received package
type Handler func(ctx context.Context, pkg *models.Package) error

// Observer is told about every package once it is resolved
type Observer func(pkg *models.Package)

// Resolver looks up the addresses of a host name
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

type pending struct {
	job      *dispatch.Job
	deadline time.Time
	resolved bool
}

// Collector accepts build results from build hosts and attributes each one
// to the package it belongs to
type Collector struct {
	ln              *net.TCPListener
	packageRoot     string
	responseTimeout time.Duration
	readTimeout     time.Duration
	resolver        Resolver
	observer        Observer
	now             func() time.Time

	jobs []*pending
}

// Option customises a Collector
type Option func(*Collector)

// WithObserver registers fn to run after each package is resolved
func WithObserver(fn Observer) Option {
	return func(c *Collector) {
		c.observer = fn
	}
}

// WithResolver replaces the system resolver used for address fallback
func WithResolver(r Resolver) Option {
	return func(c *Collector) {
		c.resolver = r
	}
}

// Listen binds the result port. It must be called before any job is
// dispatched so early results are not refused.
func Listen(cfg *models.BuildConfig, opts ...Option) (*Collector, error) {
	ln, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return nil, models.TransportError("", fmt.Errorf("failed to listen on %s: %w", cfg.ListenAddress, err))
	}
	tcp, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return nil, models.TransportError("", fmt.Errorf("listener on %s is not TCP", cfg.ListenAddress))
	}

	c := &Collector{
		ln:              tcp,
		packageRoot:     cfg.PackageRoot,
		responseTimeout: cfg.ResponseTimeout,
		readTimeout:     cfg.ReadTimeout,
		resolver:        net.DefaultResolver,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	logrus.Infof("Listening for build results on %s", tcp.Addr())
	return c, nil
}

// Addr returns the bound listen address
func (c *Collector) Addr() net.Addr {
	return c.ln.Addr()
}

// Close releases the listening socket
func (c *Collector) Close() error {
	return c.ln.Close()
}

// Expect registers a dispatched job and moves its package to
// AwaitingResponse
func (c *Collector) Expect(job *dispatch.Job) error {
	for _, p := range c.jobs {
		if p.job.Ticket == job.Ticket {
			return fmt.Errorf("ticket %s already registered", job.Ticket)
		}
	}
	if err := job.Package.Transition(models.StateAwaitingResponse); err != nil {
		return err
	}

	p := &pending{job: job}
	if c.responseTimeout > 0 {
		p.deadline = job.DispatchedAt.Add(c.responseTimeout)
	}
	c.jobs = append(c.jobs, p)
	return nil
}

// Pending returns the number of packages still awaiting a result
func (c *Collector) Pending() int {
	n := 0
	for _, p := range c.jobs {
		if !p.resolved {
			n++
		}
	}
	return n
}

// Run accepts results one connection at a time until every expected
// package is resolved: received and handed to handle, or timed out.
// Cancelling ctx times out the packages still pending.
func (c *Collector) Run(ctx context.Context, handle Handler) error {
	logrus.Infof("Waiting for %d build server responses...", c.Pending())

	for c.Pending() > 0 {
		if err := ctx.Err(); err != nil {
			c.expireAll()
			return err
		}
		c.expire(c.now())
		if c.Pending() == 0 {
			break
		}

		if err := c.ln.SetDeadline(c.nextDeadline()); err != nil {
			return models.TransportError("", err)
		}
		conn, err := c.ln.Accept()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			c.expireAll()
			return models.TransportError("", fmt.Errorf("accept failed: %w", err))
		}

		c.handle(ctx, conn, handle)
	}

	logrus.Info("All build server responses resolved")
	return nil
}

// nextDeadline returns the earliest package deadline, capped at one poll
// interval from now
func (c *Collector) nextDeadline() time.Time {
	next := c.now().Add(pollInterval)
	for _, p := range c.jobs {
		if !p.resolved && !p.deadline.IsZero() && p.deadline.Before(next) {
			next = p.deadline
		}
	}
	return next
}

// expire times out every pending package whose deadline has passed
func (c *Collector) expire(now time.Time) {
	for _, p := range c.jobs {
		if p.resolved || p.deadline.IsZero() || now.Before(p.deadline) {
			continue
		}
		c.timeout(p)
	}
}

func (c *Collector) expireAll() {
	for _, p := range c.jobs {
		if !p.resolved {
			c.timeout(p)
		}
	}
}

func (c *Collector) timeout(p *pending) {
	pkg := p.job.Package
	logrus.WithField("package", pkg.Name()).Errorf("No response from %s, giving up", pkg.BuildServer)
	if err := pkg.Transition(models.StateTimedOut); err != nil {
		logrus.Warn(err)
	}
	c.resolve(p)
}

func (c *Collector) resolve(p *pending) {
	p.resolved = true
	if c.observer != nil {
		c.observer(p.job.Package)
	}
}

// handle receives one result, attributes it and post-processes it
func (c *Collector) handle(ctx context.Context, conn net.Conn, handle Handler) {
	defer conn.Close()

	peer := hostOf(conn.RemoteAddr())
	logrus.Debugf("Got response from %s", conn.RemoteAddr())

	if c.readTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			logrus.Warnf("Dropping result from %s: %v", peer, err)
			return
		}
	}

	scratch, err := os.CreateTemp(c.packageRoot, ".incoming-*"+archive.Extension)
	if err != nil {
		logrus.Errorf("Failed to create scratch file: %v", err)
		return
	}
	scratchPath := scratch.Name()
	scratch.Close()
	defer os.Remove(scratchPath)

	n, err := archive.ReceiveStream(conn, scratchPath)
	if err != nil {
		logrus.Warnf("Dropping result from %s: %v", peer, err)
		return
	}
	logrus.Debugf("Received %d bytes from %s", n, peer)

	p := c.attribute(ctx, scratchPath, peer)
	if p == nil {
		logrus.Warnf("Discarding unattributable result from %s", peer)
		return
	}

	pkg := p.job.Package
	log := logrus.WithField("package", pkg.Name())

	resultPath := c.ResultPath(pkg)
	if err := os.Rename(scratchPath, resultPath); err != nil {
		log.Errorf("Failed to keep result: %v", err)
		c.failReceive(p, err)
		return
	}

	log.Debugf("Uncompressing to %s", pkg.StageDir)
	if err := os.RemoveAll(pkg.StageDir); err != nil {
		c.failReceive(p, err)
		return
	}
	if err := archive.Uncompress(ctx, resultPath, pkg.StageDir); err != nil {
		c.failReceive(p, err)
		return
	}

	if err := pkg.Transition(models.StateReceived); err != nil {
		c.failReceive(p, err)
		return
	}

	if err := handle(ctx, pkg); err != nil {
		log.Errorf("Post-processing failed: %v", err)
	}
	c.resolve(p)
}

func (c *Collector) failReceive(p *pending, err error) {
	pkg := p.job.Package
	logrus.WithField("package", pkg.Name()).Errorf("Failed to ingest result: %v", err)
	if terr := pkg.Transition(models.StateFailed); terr != nil {
		logrus.Warn(terr)
	}
	c.resolve(p)
}

// ResultPath returns root/.<name>.result.tar.zst
func (c *Collector) ResultPath(pkg *models.Package) string {
	return filepath.Join(c.packageRoot, "."+pkg.Name()+".result"+archive.Extension)
}

// attribute finds the pending package a result belongs to. The echoed
// ticket decides; a result without a ticket is matched by peer address,
// and only when exactly one pending package's build host has that address.
func (c *Collector) attribute(ctx context.Context, resultPath, peer string) *pending {
	ticket, ok, err := dispatch.ReadTicket(resultPath)
	if err != nil {
		logrus.Warnf("Unreadable ticket in result from %s: %v", peer, err)
		return nil
	}

	if ok {
		for _, p := range c.jobs {
			if p.job.Ticket == ticket {
				if p.resolved {
					logrus.Warnf("Duplicate result for ticket %s from %s", ticket, peer)
					return nil
				}
				return p
			}
		}
		logrus.Warnf("Unknown ticket %s from %s", ticket, peer)
		return nil
	}

	var match *pending
	for _, p := range c.jobs {
		if p.resolved || !c.hostHasAddress(ctx, p.job.Package.BuildServer, peer) {
			continue
		}
		if match != nil {
			logrus.Warnf("Result from %s carries no ticket and matches several pending packages", peer)
			return nil
		}
		match = p
	}
	return match
}

// hostHasAddress resolves host now, without caching, and compares with addr
func (c *Collector) hostHasAddress(ctx context.Context, host, addr string) bool {
	peerIP := net.ParseIP(addr)
	addrs, err := c.resolver.LookupHost(ctx, host)
	if err != nil {
		logrus.Debugf("Failed to resolve %s: %v", host, err)
		return false
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && ip.Equal(peerIP) {
			return true
		}
	}
	return false
}

func hostOf(addr net.Addr) string {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
