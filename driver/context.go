package driver

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Context binds a Driver to a device and is the explicit precondition for
// every allocation, stream and module call. There is no implicit "current
// context"; constructors in the memory, stream, kernel and event packages all
// take a *Context.
type Context struct {
	drv    Driver
	device int
	id     string
	log    *zap.Logger
}

// ContextOption customizes context creation.
type ContextOption func(*Context)

// WithLogger attaches a logger to the context. Library code logs at Debug
// level only.
func WithLogger(log *zap.Logger) ContextOption {
	return func(c *Context) {
		if log != nil {
			c.log = log
		}
	}
}

// NewContext initializes drv and binds device as its current device.
func NewContext(drv Driver, device int, opts ...ContextOption) (*Context, error) {
	if drv == nil {
		return nil, fmt.Errorf("new context: nil driver")
	}
	ctx := &Context{
		drv:    drv,
		device: device,
		id:     uuid.NewString(),
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ctx)
	}
	if err := drv.Init(device); err != nil {
		return nil, fmt.Errorf("new context: %w", err)
	}
	ctx.log = ctx.log.With(zap.String("context_id", ctx.id), zap.Int("device", device))
	ctx.log.Debug("context initialized")
	return ctx, nil
}

// Driver returns the underlying native driver.
func (c *Context) Driver() Driver { return c.drv }

// Device returns the bound device index.
func (c *Context) Device() int { return c.device }

// ID returns the unique identifier of this context instance.
func (c *Context) ID() string { return c.id }

// Log returns the context logger.
func (c *Context) Log() *zap.Logger { return c.log }
