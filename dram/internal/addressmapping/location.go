// Package addressmapping converts flat physical addresses to DRAM locations
// and back.
package addressmapping

// A Location identifies an access target down to the column level.
type Location struct {
	Channel   uint64
	Rank      uint64
	BankGroup uint64
	Bank      uint64
	Row       uint64
	Column    uint64
}
