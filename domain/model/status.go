package model

// StatusKind is the operator-visible state of this unit.
type StatusKind string

const (
	StatusActive      StatusKind = "active"
	StatusWaiting     StatusKind = "waiting"
	StatusMaintenance StatusKind = "maintenance"
	StatusBlocked     StatusKind = "blocked"
)

// UnitStatus is reported to the hosting platform after each reconciliation.
type UnitStatus struct {
	Kind    StatusKind
	Message string
}

func Active() UnitStatus { return UnitStatus{Kind: StatusActive} }

func Waiting(msg string) UnitStatus { return UnitStatus{Kind: StatusWaiting, Message: msg} }

func Maintenance(msg string) UnitStatus { return UnitStatus{Kind: StatusMaintenance, Message: msg} }

func Blocked(msg string) UnitStatus { return UnitStatus{Kind: StatusBlocked, Message: msg} }
