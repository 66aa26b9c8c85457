package shellcache

import "sync/atomic"

// UpdateCoordinator is the page side of a user-approved takeover: it
// surfaces "update available", forwards the confirmation and reloads the
// page once when the new version takes control.
type UpdateCoordinator struct {
	client    *Client
	prompt    func(version string)
	reload    func()
	reloading atomic.Bool
	pending   atomic.Pointer[Worker]
}

// NewUpdateCoordinator binds the listeners on c. Call it once per page.
func NewUpdateCoordinator(c *Client, prompt func(version string), reload func()) *UpdateCoordinator {
	u := &UpdateCoordinator{client: c, prompt: prompt, reload: reload}
	c.OnUpdateReady(u.updateReady)
	c.OnControllerChange(u.controllerChanged)

	if w := c.reg.Waiting(); w != nil && c.Controller() != nil {
		u.updateReady(w)
	}
	return u
}

func (u *UpdateCoordinator) updateReady(w *Worker) {
	u.pending.Store(w)
	if u.prompt != nil {
		u.prompt(w.Version())
	}
}

// Pending returns the version waiting for confirmation, if any.
func (u *UpdateCoordinator) Pending() string {
	if w := u.pending.Load(); w != nil {
		return w.Version()
	}
	return ""
}

// Confirm asks the waiting version to take over.
func (u *UpdateCoordinator) Confirm() bool {
	if u.pending.Swap(nil) == nil {
		return false
	}
	return u.client.PostMessage(MessageSkipWaiting)
}

func (u *UpdateCoordinator) controllerChanged() {
	if !u.reloading.CompareAndSwap(false, true) {
		return
	}
	if u.reload != nil {
		u.reload()
	}
}

// Reloading reports whether the reload already fired.
func (u *UpdateCoordinator) Reloading() bool {
	return u.reloading.Load()
}
