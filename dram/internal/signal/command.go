// Package signal defines the commands and transactions that move between the
// DRAM system, the per-channel controllers, and the banks.
package signal

import "github.com/sarchlab/pimdram/dram/internal/addressmapping"

// CommandKind distinguishes the DRAM commands the system can issue.
type CommandKind int

// All the command kinds. CmdKindInvalid is the sentinel returned when a
// controller cannot issue anything for a request this cycle.
const (
	CmdKindInvalid CommandKind = iota
	CmdKindActivate
	CmdKindRead
	CmdKindReadPrecharge
	CmdKindWrite
	CmdKindWritePrecharge
	CmdKindPrecharge
	CmdKindRefresh
	CmdKindPIMActivate
	CmdKindPIMRead
	CmdKindPIMReadPrecharge
	CmdKindPIMWrite
	CmdKindPIMWritePrecharge
)

var commandKindNames = map[CommandKind]string{
	CmdKindInvalid:           "INVALID",
	CmdKindActivate:          "ACTIVATE",
	CmdKindRead:              "READ",
	CmdKindReadPrecharge:     "READ_PRECHARGE",
	CmdKindWrite:             "WRITE",
	CmdKindWritePrecharge:    "WRITE_PRECHARGE",
	CmdKindPrecharge:         "PRECHARGE",
	CmdKindRefresh:           "REFRESH",
	CmdKindPIMActivate:       "PIM_ACTIVATE",
	CmdKindPIMRead:           "PIM_READ",
	CmdKindPIMReadPrecharge:  "PIM_READ_PRECHARGE",
	CmdKindPIMWrite:          "PIM_WRITE",
	CmdKindPIMWritePrecharge: "PIM_WRITE_PRECHARGE",
}

func (k CommandKind) String() string {
	return commandKindNames[k]
}

// IsPIM returns true for the PIM-flavored command kinds.
func (k CommandKind) IsPIM() bool {
	switch k {
	case CmdKindPIMActivate, CmdKindPIMRead, CmdKindPIMReadPrecharge,
		CmdKindPIMWrite, CmdKindPIMWritePrecharge:
		return true
	}

	return false
}

// IsReadFamily returns true for commands that read columns out of a bank.
func (k CommandKind) IsReadFamily() bool {
	switch k {
	case CmdKindRead, CmdKindReadPrecharge,
		CmdKindPIMRead, CmdKindPIMReadPrecharge:
		return true
	}

	return false
}

// IsWriteFamily returns true for commands that write columns into a bank.
func (k CommandKind) IsWriteFamily() bool {
	switch k {
	case CmdKindWrite, CmdKindWritePrecharge,
		CmdKindPIMWrite, CmdKindPIMWritePrecharge:
		return true
	}

	return false
}

// ClosesRow returns true for commands that leave the bank precharged.
func (k CommandKind) ClosesRow() bool {
	switch k {
	case CmdKindReadPrecharge, CmdKindWritePrecharge, CmdKindPrecharge,
		CmdKindPIMReadPrecharge, CmdKindPIMWritePrecharge, CmdKindRefresh:
		return true
	}

	return false
}

// TimingClass folds the PIM command kinds onto the conventional kinds that
// share their timing behavior, so that a single time table covers both.
func (k CommandKind) TimingClass() CommandKind {
	switch k {
	case CmdKindPIMActivate:
		return CmdKindActivate
	case CmdKindPIMRead:
		return CmdKindRead
	case CmdKindPIMReadPrecharge:
		return CmdKindReadPrecharge
	case CmdKindPIMWrite:
		return CmdKindWrite
	case CmdKindPIMWritePrecharge:
		return CmdKindWritePrecharge
	}

	return k
}

// A Command is one low-level DRAM command targeting one bank.
type Command struct {
	Kind     CommandKind
	Location addressmapping.Location
	FlatAddr uint64
}

// IsValid returns false for the not-ready sentinel.
func (c Command) IsValid() bool {
	return c.Kind != CmdKindInvalid
}
