package org

import (
	"github.com/sarchlab/pimdram/dram/internal/addressmapping"
	"github.com/sarchlab/pimdram/dram/internal/signal"
)

// A Channel routes commands to its banks and fans timing updates out across
// the four constraint scopes.
type Channel interface {
	GetReadyCommand(cmd signal.Command, cycle uint64) signal.Command
	StartCommand(cmd signal.Command, cycle uint64)
	UpdateTiming(cmd signal.Command, cycle uint64)
	CloseAllRows()
}

// ChannelImpl implements Channel.
type ChannelImpl struct {
	Banks  Banks
	Timing Timing
}

// GetReadyCommand forwards the probe to the target bank.
func (c *ChannelImpl) GetReadyCommand(
	cmd signal.Command,
	cycle uint64,
) signal.Command {
	loc := cmd.Location
	bank := c.Banks.GetBank(loc.Rank, loc.BankGroup, loc.Bank)

	return bank.GetReadyCommand(cmd, cycle)
}

// StartCommand runs the command on the target bank.
func (c *ChannelImpl) StartCommand(cmd signal.Command, cycle uint64) {
	loc := cmd.Location
	bank := c.Banks.GetBank(loc.Rank, loc.BankGroup, loc.Bank)

	bank.StartCommand(cmd, cycle)
}

// UpdateTiming applies the constraints the command imposes on every bank of
// the channel, scope by scope.
func (c *ChannelImpl) UpdateTiming(cmd signal.Command, cycle uint64) {
	kind := cmd.Kind.TimingClass()
	loc := cmd.Location

	for rank := range c.Banks {
		for bg := range c.Banks[rank] {
			for bk := range c.Banks[rank][bg] {
				table := c.tableFor(loc,
					uint64(rank), uint64(bg), uint64(bk))
				c.applyTable(table, kind,
					c.Banks[rank][bg][bk], cycle)
			}
		}
	}
}

func (c *ChannelImpl) tableFor(
	loc addressmapping.Location,
	rank, bg, bk uint64,
) TimeTable {
	switch {
	case rank != loc.Rank:
		return c.Timing.OtherRanks
	case bg != loc.BankGroup:
		return c.Timing.SameRank
	case bk != loc.Bank:
		return c.Timing.OtherBanksInBankGroup
	default:
		return c.Timing.SameBank
	}
}

func (c *ChannelImpl) applyTable(
	table TimeTable,
	kind signal.CommandKind,
	bank Bank,
	cycle uint64,
) {
	for _, entry := range table[kind] {
		bank.UpdateTiming(entry.NextCmdKind,
			cycle+uint64(entry.MinCycleInBetween))
	}
}

// CloseAllRows precharges every bank of the channel, as a refresh does.
func (c *ChannelImpl) CloseAllRows() {
	for _, rank := range c.Banks {
		for _, bg := range rank {
			for _, bank := range bg {
				bank.CloseRow()
			}
		}
	}
}
