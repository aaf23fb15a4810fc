package domain

type SettlementStatus string

const (
	SettlementInitiated        SettlementStatus = "INITIATED"
	SettlementStockDecremented SettlementStatus = "STOCK_DECREMENTED"
	SettlementRecorded         SettlementStatus = "RECORDED"
	SettlementCompleted        SettlementStatus = "COMPLETED"
	SettlementFailed           SettlementStatus = "FAILED"
)

func (s SettlementStatus) IsTerminal() bool {
	return s == SettlementCompleted
}

// String representation (for logging)
func (s SettlementStatus) String() string {
	return string(s)
}

// CanTransitionTo lets a FAILED settlement retry the stock step; decrements are keyed by settlement id.
func CanTransitionTo(from, to SettlementStatus) bool {
	switch from {
	case SettlementInitiated:
		return to == SettlementStockDecremented || to == SettlementFailed
	case SettlementStockDecremented:
		return to == SettlementRecorded || to == SettlementFailed
	case SettlementRecorded:
		return to == SettlementCompleted || to == SettlementFailed
	case SettlementFailed:
		return to == SettlementStockDecremented || to == SettlementFailed
	}
	return false
}

type Role string

const (
	RoleUser               Role = "user"
	RoleAdmin              Role = "admin"
	RoleDairyAdministrator Role = "dairyadministrator"
)

// CanUseTill reports whether the role gets the point-of-sale screens.
func (r Role) CanUseTill() bool {
	return r == RoleUser || r == RoleAdmin
}
