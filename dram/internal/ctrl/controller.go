// Package ctrl implements the per-channel DRAM controller. The controller
// owns the channel's timing state, the conventional transaction queue, the
// three PIM command lanes, and the refresh schedule.
package ctrl

import (
	"github.com/sarchlab/pimdram/dram/internal/addressmapping"
	"github.com/sarchlab/pimdram/dram/internal/org"
	"github.com/sarchlab/pimdram/dram/internal/signal"
)

// Config carries the parameters a controller needs beyond its channel.
type Config struct {
	TransQueueCap int

	ReadDelay  int
	WriteDelay int

	TREFI           int
	TRFC            int
	PIMRefreshLead  int
	PIMRefreshLead2 int
}

// Stats counts the work a controller has done since the last reset.
type Stats struct {
	NumActivate  uint64
	NumPrecharge uint64
	NumRead      uint64
	NumWrite     uint64
	NumRefresh   uint64
	NumPIMRead   uint64
	NumPIMWrite  uint64
	NumTransDone uint64
}

type doneTrans struct {
	flatAddr      uint64
	isWrite       bool
	completeCycle uint64
}

type pendingCommand struct {
	cmd          signal.Command
	releaseCycle uint64
}

// NewController creates a controller for one channel.
func NewController(
	channelID int,
	channel org.Channel,
	mapper addressmapping.Mapper,
	cfg Config,
) *Controller {
	return &Controller{
		channelID:   channelID,
		channel:     channel,
		mapper:      mapper,
		cfg:         cfg,
		nextRefresh: uint64(cfg.TREFI),
	}
}

// Controller drives one DRAM channel.
type Controller struct {
	channelID int
	channel   org.Channel
	mapper    addressmapping.Mapper
	cfg       Config

	cycle uint64

	transQueue []signal.Transaction
	done       []doneTrans

	weightLane []signal.Command
	inputLane  []pendingCommand
	writeLane  []signal.Command

	nextRefresh  uint64
	refreshUntil uint64

	multiTenant bool

	stats Stats
}

// WillAcceptTransaction reports whether the transaction queue has room.
func (c *Controller) WillAcceptTransaction(
	flatAddr uint64,
	isWrite bool,
) bool {
	return len(c.transQueue) < c.cfg.TransQueueCap
}

// AddTransaction enqueues a conventional transaction.
func (c *Controller) AddTransaction(t signal.Transaction) {
	c.transQueue = append(c.transQueue, t)
}

// GetReadyCommand returns the command the channel can issue this cycle toward
// executing cmd, or the invalid sentinel. During refresh nothing is ready.
func (c *Controller) GetReadyCommand(
	cmd signal.Command,
	cycle uint64,
) signal.Command {
	if c.IsInRefresh() {
		return signal.Command{Kind: signal.CmdKindInvalid}
	}

	return c.channel.GetReadyCommand(cmd, cycle)
}

// ReturnDoneTrans pops one completed transaction, if any.
func (c *Controller) ReturnDoneTrans(cycle uint64) (uint64, signal.TransKind) {
	for i, d := range c.done {
		if d.completeCycle > cycle {
			continue
		}

		c.done = append(c.done[:i], c.done[i+1:]...)
		c.stats.NumTransDone++

		if d.isWrite {
			return d.flatAddr, signal.TransKindWrite
		}

		return d.flatAddr, signal.TransKindRead
	}

	return 0, signal.TransKindNone
}

// IsInRefresh reports whether a refresh is running right now.
func (c *Controller) IsInRefresh() bool {
	return c.cycle < c.refreshUntil
}

// PIMRefreshComing reports that a refresh is near enough that no new rows
// should be opened for PIM work.
func (c *Controller) PIMRefreshComing() bool {
	return c.cyclesToRefresh() <= uint64(c.cfg.PIMRefreshLead)
}

// PIMRefreshComing2 reports that a refresh is imminent and all PIM work must
// be suppressed.
func (c *Controller) PIMRefreshComing2() bool {
	return c.cyclesToRefresh() <= uint64(c.cfg.PIMRefreshLead2)
}

func (c *Controller) cyclesToRefresh() uint64 {
	return c.nextRefresh - c.cycle
}

// PushWeightCommand appends a command to the weight-fetch lane.
func (c *Controller) PushWeightCommand(cmd signal.Command) {
	c.weightLane = append(c.weightLane, cmd)
}

// PushInputCommand appends a command to the input-feed lane. The command is
// held until releaseCycle.
func (c *Controller) PushInputCommand(
	cmd signal.Command,
	releaseCycle uint64,
) {
	c.inputLane = append(c.inputLane, pendingCommand{cmd, releaseCycle})
}

// PushWriteCommand appends a command to the output-write lane.
func (c *Controller) PushWriteCommand(cmd signal.Command) {
	c.writeLane = append(c.writeLane, cmd)
}

// SetMultiTenant switches the controller's write scheduling into multi-tenant
// mode.
func (c *Controller) SetMultiTenant(on bool) {
	c.multiTenant = on
}

// MultiTenant reports the multi-tenant flag.
func (c *Controller) MultiTenant() bool {
	return c.multiTenant
}

// CollectStats returns the counters accumulated since the last reset.
func (c *Controller) CollectStats() Stats {
	return c.stats
}

// ResetStats clears the counters.
func (c *Controller) ResetStats() {
	c.stats = Stats{}
}

// Tick advances the controller by one cycle: refresh bookkeeping, lane issue,
// then the conventional datapath.
func (c *Controller) Tick() {
	c.tickRefresh()

	if !c.IsInRefresh() {
		c.issueLanes()
		c.issueConventional()
	}

	c.cycle++
}

func (c *Controller) tickRefresh() {
	if c.cycle != c.nextRefresh {
		return
	}

	c.refreshUntil = c.cycle + uint64(c.cfg.TRFC)
	c.nextRefresh += uint64(c.cfg.TREFI)
	c.channel.CloseAllRows()
	c.stats.NumRefresh++
}

func (c *Controller) issueLanes() {
	for _, cmd := range c.weightLane {
		c.issue(cmd)
	}
	c.weightLane = c.weightLane[:0]

	kept := c.inputLane[:0]
	for _, p := range c.inputLane {
		if p.releaseCycle > c.cycle {
			kept = append(kept, p)
			continue
		}

		c.issue(p.cmd)
	}
	c.inputLane = kept

	for _, cmd := range c.writeLane {
		c.issue(cmd)

		if cmd.Kind.IsWriteFamily() {
			c.done = append(c.done, doneTrans{
				flatAddr:      cmd.FlatAddr,
				isWrite:       true,
				completeCycle: c.cycle + uint64(c.cfg.WriteDelay),
			})
		}
	}
	c.writeLane = c.writeLane[:0]
}

// issue runs one pre-validated command on the channel.
func (c *Controller) issue(cmd signal.Command) {
	c.channel.StartCommand(cmd, c.cycle)
	c.channel.UpdateTiming(cmd, c.cycle)
	c.countCommand(cmd.Kind)
}

func (c *Controller) countCommand(kind signal.CommandKind) {
	switch kind {
	case signal.CmdKindActivate, signal.CmdKindPIMActivate:
		c.stats.NumActivate++
	case signal.CmdKindPrecharge:
		c.stats.NumPrecharge++
	case signal.CmdKindRead, signal.CmdKindReadPrecharge:
		c.stats.NumRead++
	case signal.CmdKindWrite, signal.CmdKindWritePrecharge:
		c.stats.NumWrite++
	case signal.CmdKindPIMRead, signal.CmdKindPIMReadPrecharge:
		c.stats.NumPIMRead++
	case signal.CmdKindPIMWrite, signal.CmdKindPIMWritePrecharge:
		c.stats.NumPIMWrite++
	}
}

func (c *Controller) issueConventional() {
	if len(c.transQueue) == 0 {
		return
	}

	t := c.transQueue[0]
	want := signal.CmdKindRead
	delay := c.cfg.ReadDelay
	if t.IsWrite {
		want = signal.CmdKindWrite
		delay = c.cfg.WriteDelay
	}

	cmd := signal.Command{
		Kind:     want,
		Location: c.mapper.Map(t.FlatAddr),
		FlatAddr: t.FlatAddr,
	}

	ready := c.channel.GetReadyCommand(cmd, c.cycle)
	if !ready.IsValid() {
		return
	}

	c.issue(ready)

	if ready.Kind != want {
		return
	}

	c.transQueue = c.transQueue[1:]
	c.done = append(c.done, doneTrans{
		flatAddr:      t.FlatAddr,
		isWrite:       t.IsWrite,
		completeCycle: c.cycle + uint64(delay),
	})
}
