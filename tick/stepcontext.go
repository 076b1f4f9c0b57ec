package tick

import (
	"github.com/behrlich/simcore/arena"
	"github.com/behrlich/simcore/contract"
	"github.com/behrlich/simcore/internal/bufpool"
)

// stepContext is the concrete contract.StepContext handed to exactly one
// propagator's Step call. It is not safe to retain past that call: its
// scratch buffers are returned to the pool once the step finishes.
type stepContext struct {
	wa       *arena.WriteArena
	space    contract.Space
	tickID   uint64
	dt       float64
	prop     contract.Propagator
	scratch  [][]float32
}

func newStepContext(wa *arena.WriteArena, space contract.Space, tickID uint64, dt float64, prop contract.Propagator) *stepContext {
	return &stepContext{wa: wa, space: space, tickID: tickID, dt: dt, prop: prop}
}

func (c *stepContext) Reads() []arena.FieldID         { return c.prop.Reads() }
func (c *stepContext) ReadsPrevious() []arena.FieldID { return c.prop.ReadsPrevious() }
func (c *stepContext) Writes() []contract.FieldWrite  { return c.prop.Writes() }

func (c *stepContext) Read(id arena.FieldID) ([]float32, bool)         { return c.wa.Read(id) }
func (c *stepContext) ReadPrevious(id arena.FieldID) ([]float32, bool) { return c.wa.ReadPrevious(id) }
func (c *stepContext) Write(id arena.FieldID) ([]float32, error)       { return c.wa.Write(id) }

// Scratch returns a zeroed buffer of at least n floats, released back to
// the pool when the step that requested it returns.
func (c *stepContext) Scratch(n int) []float32 {
	buf := bufpool.Get(n)
	for i := range buf {
		buf[i] = 0
	}
	c.scratch = append(c.scratch, buf)
	return buf
}

// release returns every scratch buffer handed out during this step to
// the pool. Called by the engine once Step returns.
func (c *stepContext) release() {
	for _, b := range c.scratch {
		bufpool.Put(b)
	}
	c.scratch = nil
}

func (c *stepContext) Space() contract.Space { return c.space }
func (c *stepContext) TickID() uint64        { return c.tickID }
func (c *stepContext) Dt() float64           { return c.dt }

var _ contract.StepContext = (*stepContext)(nil)
