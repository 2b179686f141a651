package dram

import (
	"github.com/sarchlab/pimdram/dram/internal/ctrl"
	"github.com/sarchlab/pimdram/dram/internal/signal"
)

// A Controller is one per-channel DRAM controller as the system sees it. The
// system only probes readiness, appends to the command lanes, drains
// completions, and ticks the controller; all timing state stays inside.
type Controller interface {
	WillAcceptTransaction(flatAddr uint64, isWrite bool) bool
	AddTransaction(t signal.Transaction)

	GetReadyCommand(cmd signal.Command, cycle uint64) signal.Command
	ReturnDoneTrans(cycle uint64) (uint64, signal.TransKind)

	IsInRefresh() bool
	PIMRefreshComing() bool
	PIMRefreshComing2() bool

	PushWeightCommand(cmd signal.Command)
	PushInputCommand(cmd signal.Command, releaseCycle uint64)
	PushWriteCommand(cmd signal.Command)

	SetMultiTenant(on bool)

	CollectStats() ctrl.Stats
	ResetStats()

	Tick()
}
