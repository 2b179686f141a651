package org

import (
	"github.com/sarchlab/pimdram/dram/internal/signal"
)

// A Bank is one DRAM bank with an open-row state machine and per-kind
// earliest-issue cycles.
type Bank interface {
	// GetReadyCommand returns the command the bank can actually run this
	// cycle toward executing cmd. It may be cmd itself, an ACTIVATE or
	// PRECHARGE precursor, or the invalid sentinel when timing blocks
	// everything.
	GetReadyCommand(cmd signal.Command, cycle uint64) signal.Command

	// StartCommand runs a command on the bank, updating the open-row state.
	StartCommand(cmd signal.Command, cycle uint64)

	// UpdateTiming forbids issuing the given kind before earliestCycle.
	UpdateTiming(kind signal.CommandKind, earliestCycle uint64)

	// CloseRow precharges the bank without a command, as refresh does.
	CloseRow()
}

const rowClosed = -1

// NewBankImpl creates a bank with all rows closed.
func NewBankImpl(name string) *BankImpl {
	return &BankImpl{
		name:        name,
		openRow:     rowClosed,
		availableAt: make(map[signal.CommandKind]uint64),
	}
}

// BankImpl implements Bank.
type BankImpl struct {
	name        string
	openRow     int64
	availableAt map[signal.CommandKind]uint64
}

// Name returns the name of the bank.
func (b *BankImpl) Name() string {
	return b.name
}

// GetReadyCommand resolves cmd against the open-row state, then against the
// timing constraints.
func (b *BankImpl) GetReadyCommand(
	cmd signal.Command,
	cycle uint64,
) signal.Command {
	ready := b.resolveRowState(cmd)

	if cycle < b.availableAt[ready.Kind.TimingClass()] {
		return signal.Command{Kind: signal.CmdKindInvalid}
	}

	return ready
}

func (b *BankImpl) resolveRowState(cmd signal.Command) signal.Command {
	switch cmd.Kind {
	case signal.CmdKindActivate, signal.CmdKindPIMActivate,
		signal.CmdKindPrecharge, signal.CmdKindRefresh:
		return cmd
	}

	if b.openRow == rowClosed {
		act := cmd
		if cmd.Kind.IsPIM() {
			act.Kind = signal.CmdKindPIMActivate
		} else {
			act.Kind = signal.CmdKindActivate
		}

		return act
	}

	if b.openRow != int64(cmd.Location.Row) {
		pre := cmd
		pre.Kind = signal.CmdKindPrecharge

		return pre
	}

	return cmd
}

// StartCommand updates the open-row state for the command being issued.
func (b *BankImpl) StartCommand(cmd signal.Command, cycle uint64) {
	switch {
	case cmd.Kind == signal.CmdKindActivate,
		cmd.Kind == signal.CmdKindPIMActivate:
		b.openRow = int64(cmd.Location.Row)
	case cmd.Kind.ClosesRow():
		b.openRow = rowClosed
	}
}

// UpdateTiming pushes the earliest-issue cycle of a command kind forward. It
// never moves the bound backward.
func (b *BankImpl) UpdateTiming(
	kind signal.CommandKind,
	earliestCycle uint64,
) {
	if b.availableAt[kind] < earliestCycle {
		b.availableAt[kind] = earliestCycle
	}
}

// CloseRow precharges the bank immediately.
func (b *BankImpl) CloseRow() {
	b.openRow = rowClosed
}
