package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
	"github.com/sirupsen/logrus"
)

// maxRetryElapsed bounds the time spent retrying one dial
const maxRetryElapsed = 2 * time.Minute

// Resolver looks up the addresses of a host name
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// hostDialer opens connections to build hosts with per-host circuit
// breakers and bounded retries
type hostDialer struct {
	port     int
	retries  int
	resolver Resolver
	dialer   *net.Dialer

	mu       sync.Mutex
	breakers map[string]*circuit.Breaker
}

func newHostDialer(port, retries int, timeout time.Duration, resolver Resolver) *hostDialer {
	return &hostDialer{
		port:     port,
		retries:  retries,
		resolver: resolver,
		dialer: &net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		},
		breakers: make(map[string]*circuit.Breaker),
	}
}

// breaker returns or creates the circuit breaker for host
func (d *hostDialer) breaker(host string) *circuit.Breaker {
	d.mu.Lock()
	defer d.mu.Unlock()

	if b, ok := d.breakers[host]; ok {
		return b
	}

	// Trips after 3 consecutive failures
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	b := circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(3),
	})
	d.breakers[host] = b
	return b
}

// Dial connects to host on the job submission port
func (d *hostDialer) Dial(ctx context.Context, host string) (net.Conn, error) {
	b := d.breaker(host)
	if !b.Ready() {
		return nil, fmt.Errorf("circuit breaker open for build host %s", host)
	}

	var conn net.Conn
	var open error
	attempt := 0
	op := func() error {
		attempt++
		err := b.Call(func() error {
			c, err := d.dialOnce(ctx, host)
			if err != nil {
				logrus.Debugf("Dial %s attempt %d failed: %v", host, attempt, err)
				return err
			}
			conn = c
			return nil
		}, 0)
		if errors.Is(err, circuit.ErrBreakerOpen) {
			// Nothing left to retry against
			open = fmt.Errorf("circuit breaker open for build host %s", host)
			return nil
		}
		return err
	}

	if err := backoff.Retry(op, backoff.WithContext(d.retryPolicy(), ctx)); err != nil {
		return nil, err
	}
	if open != nil {
		return nil, open
	}
	return conn, nil
}

// retryPolicy allows one attempt plus d.retries retries
func (d *hostDialer) retryPolicy() backoff.BackOff {
	if d.retries <= 0 {
		return &backoff.StopBackOff{}
	}
	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = 500 * time.Millisecond
	retry.MaxInterval = 10 * time.Second
	retry.MaxElapsedTime = maxRetryElapsed
	return backoff.WithMaxRetries(retry, uint64(d.retries))
}

func (d *hostDialer) dialOnce(ctx context.Context, host string) (net.Conn, error) {
	addrs, err := d.resolver.LookupHost(ctx, host)
	if err != nil {
		return nil, err
	}

	port := strconv.Itoa(d.port)
	var lastErr error
	for _, addr := range addrs {
		conn, err := d.dialer.DialContext(ctx, "tcp", net.JoinHostPort(addr, port))
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no addresses for %s", host)
	}
	return nil, lastErr
}
