package shellcache

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	applog "contabils/internal/log"
)

// TakeoverPolicy decides when a freshly installed version starts serving.
type TakeoverPolicy int

const (
	// UserGated keeps a new version waiting until a client sends
	// SKIP_WAITING. Pages loaded before the first install stay uncontrolled
	// until they reload.
	UserGated TakeoverPolicy = iota
	// Immediate activates on install and claims every open client.
	Immediate
)

func (p TakeoverPolicy) String() string {
	if p == Immediate {
		return "immediate"
	}
	return "user-gated"
}

type Options struct {
	// Origin is the scope the manifest paths resolve against.
	Origin string
	// Network performs real requests. Defaults to http.DefaultTransport.
	Network    http.RoundTripper
	Policy     TakeoverPolicy
	RuntimeCap int
	Logger     *applog.Logger
}

// Registration tracks the installing, waiting and active versions of the
// shell for one origin, and the clients they control.
type Registration struct {
	origin  *url.URL
	network http.RoundTripper
	policy  TakeoverPolicy
	storage *Storage
	logger  *applog.Logger

	mu         sync.Mutex
	installing *Worker
	waiting    *Worker
	active     *Worker
	clients    []*Client
}

func NewRegistration(opts Options) (*Registration, error) {
	origin, err := url.Parse(opts.Origin)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("invalid shell origin %q", opts.Origin)
	}
	if opts.Network == nil {
		opts.Network = http.DefaultTransport
	}
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	return &Registration{
		origin:  origin,
		network: opts.Network,
		policy:  opts.Policy,
		storage: NewStorage(opts.RuntimeCap),
		logger:  opts.Logger.WithComponent(applog.ComponentShell),
	}, nil
}

func (r *Registration) Storage() *Storage { return r.storage }

func (r *Registration) Active() *Worker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *Registration) Waiting() *Worker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waiting
}

// Update installs m unless it is already the active or waiting version.
// The first version activates right away; later ones follow the takeover
// policy.
func (r *Registration) Update(ctx context.Context, m Manifest) (*Worker, error) {
	r.mu.Lock()
	for _, w := range []*Worker{r.active, r.waiting, r.installing} {
		if w != nil && w.Version() == m.Version {
			r.mu.Unlock()
			return w, nil
		}
	}
	w := &Worker{
		manifest: m,
		origin:   r.origin,
		storage:  r.storage,
		network:  r.network,
		logger:   r.logger,
		state:    StateInstalling,
	}
	r.installing = w
	r.mu.Unlock()

	err := w.install(ctx)

	r.mu.Lock()
	if r.installing == w {
		r.installing = nil
	}
	if err != nil {
		r.mu.Unlock()
		w.setState(StateRedundant)
		r.logger.WarnContext(ctx, "Shell install failed", "version", m.Version, "error", err)
		return nil, fmt.Errorf("install %s: %w", m.Version, err)
	}
	w.setState(StateInstalled)

	if r.active == nil || r.policy == Immediate {
		notify := r.activateLocked(w)
		r.mu.Unlock()
		notify()
		return w, nil
	}

	if prev := r.waiting; prev != nil {
		prev.setState(StateRedundant)
		r.storage.Delete(prev.Bucket())
	}
	r.waiting = w
	ready := r.readyHooksLocked()
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "Shell update waiting", "version", m.Version)
	for _, fn := range ready {
		fn(w)
	}
	return w, nil
}

// PostMessage delivers a client message to the waiting worker.
func (r *Registration) PostMessage(msg string) bool {
	if msg != MessageSkipWaiting {
		return false
	}
	r.mu.Lock()
	w := r.waiting
	if w == nil {
		r.mu.Unlock()
		return false
	}
	r.waiting = nil
	notify := r.activateLocked(w)
	r.mu.Unlock()
	notify()
	return true
}

// activateLocked promotes w, drops stale buckets and hands w the clients of
// the previous version. The returned func fires controllerchange hooks and
// must run after r.mu is released.
func (r *Registration) activateLocked(w *Worker) func() {
	w.setState(StateActivating)
	removed := r.storage.DeleteOthers(w.Bucket())
	prev := r.active
	r.active = w
	w.setState(StateActivated)
	if prev != nil {
		prev.setState(StateRedundant)
	}
	if r.waiting != nil && r.waiting != w {
		r.waiting.setState(StateRedundant)
		r.waiting = nil
	}
	r.logger.Info("Shell version activated", "version", w.Version(), "removed_buckets", removed)

	var hooks []func()
	for _, c := range r.clients {
		c.mu.Lock()
		takeOver := (prev != nil && c.controller == prev) || (r.policy == Immediate && c.controller == nil)
		if takeOver {
			c.controller = w
			hooks = append(hooks, c.controllerHooks...)
		}
		c.mu.Unlock()
	}
	return func() {
		for _, fn := range hooks {
			fn()
		}
	}
}

func (r *Registration) readyHooksLocked() []func(*Worker) {
	var hooks []func(*Worker)
	for _, c := range r.clients {
		c.mu.Lock()
		if c.controller != nil {
			hooks = append(hooks, c.readyHooks...)
		}
		c.mu.Unlock()
	}
	return hooks
}

// Attach opens a page in scope. Pages opened while a version is active are
// controlled by it.
func (r *Registration) Attach() *Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := &Client{reg: r, controller: r.active}
	r.clients = append(r.clients, c)
	return c
}

// Client is one open page of the shell.
type Client struct {
	reg *Registration

	mu              sync.Mutex
	controller      *Worker
	controllerHooks []func()
	readyHooks      []func(*Worker)
}

func (c *Client) Controller() *Worker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

// OnControllerChange registers fn for every controller switch.
func (c *Client) OnControllerChange(fn func()) {
	c.mu.Lock()
	c.controllerHooks = append(c.controllerHooks, fn)
	c.mu.Unlock()
}

// OnUpdateReady registers fn for versions that finish installing and wait
// while this client is controlled.
func (c *Client) OnUpdateReady(fn func(*Worker)) {
	c.mu.Lock()
	c.readyHooks = append(c.readyHooks, fn)
	c.mu.Unlock()
}

// PostMessage forwards msg to the registration.
func (c *Client) PostMessage(msg string) bool {
	return c.reg.PostMessage(msg)
}
