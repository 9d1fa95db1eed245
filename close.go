package kiln

// Close shuts the tracker, the registry and the memory system down, in that
// order. Resources still referenced are logged as leaks and destroyed before
// their memory goes away. Close is idempotent.
//
// Loaders created by NewLoader must be stopped before Close.
func (c *Core) Close() error {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.trk.Shutdown()
	c.reg.Shutdown()

	var firstErr error
	if err := c.mem.Shutdown(); err != nil {
		firstErr = err
	}

	c.opts.logger.Info("core closed")
	return firstErr
}
