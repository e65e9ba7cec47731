package domain

import (
	"strconv"
	"time"
)

// Enumerations
const (
	RoleAdmin UserRole = "admin"
	RoleHR    UserRole = "hr"
	RoleStaff UserRole = "staff"

	StaffField  StaffType = "field"
	StaffOffice StaffType = "office"

	ContextVisit  ContextKind = "visit"
	ContextOffice ContextKind = "office"

	ContextScheduled ContextStatus = "scheduled"
	ContextCompleted ContextStatus = "completed"
	ContextCancelled ContextStatus = "cancelled"

	OriginWeb    OriginMedium = "web"
	OriginMobile OriginMedium = "mobile"

	FlagAutoClosed SessionFlag = "AUTO_CLOSED"

	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
)

type UserRole string
type StaffType string
type ContextKind string
type ContextStatus string
type OriginMedium string
type SessionFlag string
type ApprovalStatus string

type Money struct {
	Amount   int64
	Currency string
}

// Actor identifies who performs a state-mutating call. It is passed
// explicitly into services; approval actions require a non-empty email
// for the audit trail.
type Actor struct {
	ID    int64
	Email string
	Role  UserRole
}

func (a Actor) CanApprove() bool {
	return a.Role == RoleAdmin || a.Role == RoleHR
}

// Worker is an employee registry entry. Code is the legacy human-readable
// identifier that older session rows may still reference. Rates are hourly,
// in minor units; nil means not configured.
type Worker struct {
	ID           int64
	Code         string
	Name         string
	Email        string
	Role         UserRole
	Type         StaffType
	Rate         *Money
	TrainingRate *Money
	MileageRate  *Money
	PasswordHash *string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// WorkerAliasSet is the set of identifier strings a worker's historical
// session rows may have been written under: the canonical id, the legacy
// code, and whatever the caller supplied. Every session query goes through
// this set rather than a single assumed key.
type WorkerAliasSet struct {
	CanonicalID int64
	refs        []string
}

func NewWorkerAliasSet(canonicalID int64, refs ...string) WorkerAliasSet {
	s := WorkerAliasSet{CanonicalID: canonicalID}
	s.add(strconv.FormatInt(canonicalID, 10))
	for _, r := range refs {
		s.add(r)
	}
	return s
}

func (s *WorkerAliasSet) add(ref string) {
	if ref == "" || s.Contains(ref) {
		return
	}
	s.refs = append(s.refs, ref)
}

func (s WorkerAliasSet) Contains(ref string) bool {
	for _, v := range s.refs {
		if v == ref {
			return true
		}
	}
	return false
}

// Refs returns the alias strings, canonical id first.
func (s WorkerAliasSet) Refs() []string {
	out := make([]string, len(s.refs))
	copy(out, s.refs)
	return out
}

// WorkContext is the logical engagement a session belongs to: a scheduled
// visit or an office-attendance stream. Visit contexts carry a status;
// payroll only pays visit minutes whose context completed.
type WorkContext struct {
	ID        string
	Kind      ContextKind
	Status    ContextStatus
	CreatedAt time.Time
}

// WorkSession is one check-in/check-out span. EndAt is nil while open.
// Rows are never deleted; auto-close mutates EndAt once and appends a flag.
type WorkSession struct {
	ID          int64
	WorkerRef   string
	WorkerID    *int64
	ContextID   string
	ContextKind ContextKind
	StartAt     time.Time
	EndAt       *time.Time
	Origin      OriginMedium
	Flags       []SessionFlag
	CheckInGeo  Geolocation
	CheckOutGeo *Geolocation
	CreatedAt   time.Time
}

func (s WorkSession) IsOpen() bool { return s.EndAt == nil }

func (s WorkSession) HasFlag(f SessionFlag) bool {
	for _, v := range s.Flags {
		if v == f {
			return true
		}
	}
	return false
}

type Geolocation struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
}

// DayOverrides is the stored sparse map of per-day minute overrides on a
// weekly approval, keyed by local civil date ("2006-01-02"). A present key
// overrides the computed minutes for that day, including to zero; an absent
// key means "use computed".
type DayOverrides map[string]int

// DayOverridePatch is the adjustment input: a present key with a value sets
// an override, a present key with nil clears it, an absent key leaves the
// stored state alone.
type DayOverridePatch map[string]*int

// WeeklyApproval is one row per (worker, Sunday-start week). While PENDING,
// ComputedMinutes is recomputed on every read; once APPROVED the minutes are
// frozen until an explicit unlock.
type WeeklyApproval struct {
	ID              int64
	WorkerID        int64
	WeekStart       time.Time
	WeekEnd         time.Time
	Status          ApprovalStatus
	ComputedMinutes int
	Overrides       DayOverrides
	FinalMinutes    int
	Reason          string
	ApproverID      *int64
	ApproverEmail   *string
	ApprovedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PayrollRun is an immutable snapshot for a period [From, To). Re-generation
// creates a new run; rows are never edited.
type PayrollRun struct {
	ID            string
	PeriodStart   time.Time
	PeriodEnd     time.Time
	GeneratedBy   string
	GeneratedByID int64
	TotalPay      Money
	Warnings      []string
	Rows          []PayrollRow
	CreatedAt     time.Time
}

// AuditEntry records a sensitive admin action (approve, unlock, payroll
// generation) with who performed it.
type AuditEntry struct {
	ID         int64
	Action     string
	WorkerID   *int64
	Detail     string
	ActorEmail string
	LoggedAt   time.Time
}

type PayrollRow struct {
	ID              int64
	RunID           string
	WorkerID        int64
	WorkerName      string
	StaffType       StaffType
	Rate            Money
	RegularMinutes  int
	OvertimeMinutes int
	RegularPay      Money
	OvertimePay     Money
	TotalPay        Money
}
