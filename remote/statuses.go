package remote

import (
	"fmt"
	"strings"

	"auto_zonky_go/errs"
)

// InvestmentStatus is the lifecycle state of an investment on the platform.
type InvestmentStatus string

const (
	StatusActive   InvestmentStatus = "ACTIVE"
	StatusSigned   InvestmentStatus = "SIGNED"
	StatusPaidOff  InvestmentStatus = "PAID_OFF"
	StatusPaid     InvestmentStatus = "PAID"
	StatusCanceled InvestmentStatus = "CANCELED"
	StatusCovered  InvestmentStatus = "COVERED"
)

// declaration order doubles as the bit index and the formatting order
var allStatuses = []InvestmentStatus{StatusActive, StatusSigned, StatusPaidOff, StatusPaid, StatusCanceled, StatusCovered}

func statusIndex(s InvestmentStatus) (int, bool) {
	for i, candidate := range allStatuses {
		if candidate == s {
			return i, true
		}
	}
	return 0, false
}

// InvestmentStatuses is a finite set of investment statuses. The zero value is the empty set.
type InvestmentStatuses struct {
	bits uint32
}

// NewInvestmentStatuses builds a set from the given statuses. Unknown values are rejected.
func NewInvestmentStatuses(statuses ...InvestmentStatus) (InvestmentStatuses, error) {
	var set InvestmentStatuses
	for _, s := range statuses {
		idx, ok := statusIndex(s)
		if !ok {
			return InvestmentStatuses{}, errs.New("investment statuses", errs.CodeInvalidFormat,
				errs.WithMessage(fmt.Sprintf("unknown status %q", string(s))))
		}
		set.bits |= 1 << uint(idx)
	}
	return set, nil
}

// AllInvestmentStatuses returns the set of every known status.
func AllInvestmentStatuses() InvestmentStatuses {
	set, _ := NewInvestmentStatuses(allStatuses...)
	return set
}

// ParseInvestmentStatuses parses the "[A, B, C]" form produced by String.
func ParseInvestmentStatuses(text string) (InvestmentStatuses, error) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "[") || !strings.HasSuffix(trimmed, "]") || len(trimmed) < 2 {
		return InvestmentStatuses{}, errs.New("parse investment statuses", errs.CodeInvalidFormat,
			errs.WithMessage(fmt.Sprintf("expecting [A, B, C], got %q", text)))
	}
	inner := strings.TrimSpace(trimmed[1 : len(trimmed)-1])
	if inner == "" {
		return InvestmentStatuses{}, nil
	}
	parts := strings.Split(inner, ",")
	statuses := make([]InvestmentStatus, 0, len(parts))
	for _, p := range parts {
		tag := strings.TrimSpace(p)
		if tag == "" {
			return InvestmentStatuses{}, errs.New("parse investment statuses", errs.CodeInvalidFormat,
				errs.WithMessage(fmt.Sprintf("empty status in %q", text)))
		}
		statuses = append(statuses, InvestmentStatus(tag))
	}
	set, err := NewInvestmentStatuses(statuses...)
	if err != nil {
		return InvestmentStatuses{}, errs.New("parse investment statuses", errs.CodeInvalidFormat, errs.WithCause(err))
	}
	return set, nil
}

// Contains reports membership.
func (s InvestmentStatuses) Contains(status InvestmentStatus) bool {
	idx, ok := statusIndex(status)
	return ok && s.bits&(1<<uint(idx)) != 0
}

// Len is the number of statuses in the set.
func (s InvestmentStatuses) Len() int {
	n := 0
	for i := range allStatuses {
		if s.bits&(1<<uint(i)) != 0 {
			n++
		}
	}
	return n
}

// Statuses lists the members in declaration order.
func (s InvestmentStatuses) Statuses() []InvestmentStatus {
	out := make([]InvestmentStatus, 0, len(allStatuses))
	for i, status := range allStatuses {
		if s.bits&(1<<uint(i)) != 0 {
			out = append(out, status)
		}
	}
	return out
}

func (s InvestmentStatuses) String() string {
	members := s.Statuses()
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = string(m)
	}
	return "[" + strings.Join(names, ", ") + "]"
}
