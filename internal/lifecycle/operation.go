package lifecycle

// Operation identifies which entry point proposed a card change. Every
// trigger goes through the same pipeline; the operation only selects which
// transitions and ledger entry types apply.
type Operation string

const (
	OpIssue             Operation = "issue"
	OpFulfill           Operation = "fulfill"
	OpActivateOnline    Operation = "activate_online"
	OpActivateInStore   Operation = "activate_instore"
	OpSpend             Operation = "spend"
	OpTopUp             Operation = "top_up"
	OpGift              Operation = "gift"
	OpRegisterRecipient Operation = "register_recipient"
	OpPrint             Operation = "print"
	OpReset             Operation = "reset"
	OpAdminEdit         Operation = "admin_edit"
)

// Valid reports whether op is one of the known operations.
func (op Operation) Valid() bool {
	switch op {
	case OpIssue, OpFulfill, OpActivateOnline, OpActivateInStore, OpSpend, OpTopUp,
		OpGift, OpRegisterRecipient, OpPrint, OpReset, OpAdminEdit:
		return true
	}
	return false
}
