package org

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pimdram/dram/internal/addressmapping"
	"github.com/sarchlab/pimdram/dram/internal/signal"
)

var _ = Describe("BankImpl", func() {
	var bank *BankImpl

	read := signal.Command{
		Kind: signal.CmdKindPIMRead,
		Location: addressmapping.Location{
			Row:    12,
			Column: 3,
		},
	}

	BeforeEach(func() {
		bank = NewBankImpl("Bank")
	})

	It("should ask for an activate when the bank is closed", func() {
		ready := bank.GetReadyCommand(read, 0)

		Expect(ready.Kind).To(Equal(signal.CmdKindPIMActivate))
		Expect(ready.Location.Row).To(Equal(uint64(12)))
	})

	It("should ask for a plain activate for conventional commands",
		func() {
			cmd := read
			cmd.Kind = signal.CmdKindRead

			ready := bank.GetReadyCommand(cmd, 0)

			Expect(ready.Kind).To(Equal(signal.CmdKindActivate))
		})

	It("should return the command itself when the row is open", func() {
		act := read
		act.Kind = signal.CmdKindPIMActivate
		bank.StartCommand(act, 0)

		ready := bank.GetReadyCommand(read, 0)

		Expect(ready).To(Equal(read))
	})

	It("should ask for a precharge on a row conflict", func() {
		act := read
		act.Kind = signal.CmdKindPIMActivate
		act.Location.Row = 99
		bank.StartCommand(act, 0)

		ready := bank.GetReadyCommand(read, 0)

		Expect(ready.Kind).To(Equal(signal.CmdKindPrecharge))
	})

	It("should return the invalid sentinel while timing blocks", func() {
		bank.UpdateTiming(signal.CmdKindActivate, 10)

		Expect(bank.GetReadyCommand(read, 9).IsValid()).To(BeFalse())
		Expect(bank.GetReadyCommand(read, 10).IsValid()).To(BeTrue())
	})

	It("should block an open-row read with read timing", func() {
		act := read
		act.Kind = signal.CmdKindPIMActivate
		bank.StartCommand(act, 0)
		bank.UpdateTiming(signal.CmdKindRead, 11)

		Expect(bank.GetReadyCommand(read, 5).IsValid()).To(BeFalse())
		Expect(bank.GetReadyCommand(read, 11)).To(Equal(read))
	})

	It("should close the row on a read-precharge", func() {
		act := read
		act.Kind = signal.CmdKindPIMActivate
		bank.StartCommand(act, 0)

		readp := read
		readp.Kind = signal.CmdKindPIMReadPrecharge
		bank.StartCommand(readp, 4)

		ready := bank.GetReadyCommand(read, 100)
		Expect(ready.Kind).To(Equal(signal.CmdKindPIMActivate))
	})

	It("should never move a timing bound backward", func() {
		bank.UpdateTiming(signal.CmdKindRead, 20)
		bank.UpdateTiming(signal.CmdKindRead, 5)

		act := read
		act.Kind = signal.CmdKindPIMActivate
		bank.StartCommand(act, 0)

		Expect(bank.GetReadyCommand(read, 19).IsValid()).To(BeFalse())
	})

	It("should close the row without a command on CloseRow", func() {
		act := read
		act.Kind = signal.CmdKindPIMActivate
		bank.StartCommand(act, 0)

		bank.CloseRow()

		ready := bank.GetReadyCommand(read, 100)
		Expect(ready.Kind).To(Equal(signal.CmdKindPIMActivate))
	})
})
