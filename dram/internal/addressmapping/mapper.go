package addressmapping

// A Mapper translates between flat addresses and DRAM locations. Both
// directions use the same pre-configured bit positions, so Map and Unmap are
// exact inverses of each other.
type Mapper interface {
	Map(flatAddr uint64) Location
	Unmap(loc Location) uint64
	Channel(flatAddr uint64) uint64
}

type mapperImpl struct {
	accessUnitBits uint64

	colPos, colMask uint64
	chPos, chMask   uint64
	bankPos, bkMask uint64
	bgPos, bgMask   uint64
	rkPos, rkMask   uint64
	rowPos, rowMask uint64
}

func (m mapperImpl) Map(flatAddr uint64) Location {
	addr := flatAddr >> m.accessUnitBits

	return Location{
		Column:    (addr >> m.colPos) & m.colMask,
		Channel:   (addr >> m.chPos) & m.chMask,
		Bank:      (addr >> m.bankPos) & m.bkMask,
		BankGroup: (addr >> m.bgPos) & m.bgMask,
		Rank:      (addr >> m.rkPos) & m.rkMask,
		Row:       (addr >> m.rowPos) & m.rowMask,
	}
}

func (m mapperImpl) Unmap(loc Location) uint64 {
	addr := (loc.Column & m.colMask) << m.colPos
	addr |= (loc.Channel & m.chMask) << m.chPos
	addr |= (loc.Bank & m.bkMask) << m.bankPos
	addr |= (loc.BankGroup & m.bgMask) << m.bgPos
	addr |= (loc.Rank & m.rkMask) << m.rkPos
	addr |= (loc.Row & m.rowMask) << m.rowPos

	return addr << m.accessUnitBits
}

func (m mapperImpl) Channel(flatAddr uint64) uint64 {
	return (flatAddr >> m.accessUnitBits >> m.chPos) & m.chMask
}
