// Package org models the organization of a DRAM channel: banks, bank groups,
// ranks, and the timing constraints between commands issued to them.
package org

import "github.com/sarchlab/pimdram/dram/internal/signal"

// A TimeTableEntry restricts how soon a command kind can follow another one.
type TimeTableEntry struct {
	NextCmdKind       signal.CommandKind
	MinCycleInBetween int
}

// A TimeTable lists, for each command kind, the constraints it imposes on
// later commands.
type TimeTable map[signal.CommandKind][]TimeTableEntry

// MakeTimeTable creates an empty TimeTable.
func MakeTimeTable() TimeTable {
	return make(TimeTable)
}

// Timing captures the four constraint scopes of a channel. A command issued
// to one bank constrains the same bank, the other banks of its bank group,
// the other bank groups of its rank, and the other ranks, each differently.
type Timing struct {
	SameBank              TimeTable
	OtherBanksInBankGroup TimeTable
	SameRank              TimeTable
	OtherRanks            TimeTable
}
