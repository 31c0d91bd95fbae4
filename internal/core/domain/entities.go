package domain

// Role represents user role in the system
type Role string

const (
	RoleBorrower Role = "BORROWER"
	RoleStaff    Role = "STAFF"
	RoleAdmin    Role = "ADMIN"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleBorrower, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// LoanStatus represents the lifecycle state of a loan
type LoanStatus string

const (
	LoanPending  LoanStatus = "pending"
	LoanApproved LoanStatus = "approved"
	LoanLent     LoanStatus = "lent"
	LoanReturned LoanStatus = "returned"
	LoanRejected LoanStatus = "rejected"
)

// transitions lists every edge of the loan state machine.
var transitions = map[LoanStatus][]LoanStatus{
	LoanPending:  {LoanApproved, LoanRejected},
	LoanApproved: {LoanLent},
	LoanLent:     {LoanReturned},
}

// Valid reports whether s is a known status
func (s LoanStatus) Valid() bool {
	switch s {
	case LoanPending, LoanApproved, LoanLent, LoanReturned, LoanRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves s
func (s LoanStatus) IsTerminal() bool {
	return s == LoanReturned || s == LoanRejected
}

// CanTransition reports whether the state machine has an edge s -> to
func (s LoanStatus) CanTransition(to LoanStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Condition is the legacy single-value summary of a returned loan or a tool.
type Condition string

const (
	ConditionGood    Condition = "good"
	ConditionDamaged Condition = "damaged"
	ConditionLost    Condition = "lost"
)

// ParseCondition maps free text onto a Condition, defaulting to good.
func ParseCondition(s string) Condition {
	switch Condition(normalize(s)) {
	case ConditionDamaged, "rusak":
		return ConditionDamaged
	case ConditionLost, "hilang":
		return ConditionLost
	}
	return ConditionGood
}
