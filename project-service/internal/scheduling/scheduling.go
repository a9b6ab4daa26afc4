// Package scheduling checks resource allocations against availability and
// weekly limits and reports capacity and workload.
package scheduling

import (
	"fmt"
	"strings"
	"time"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/utils"
)

// Conflict types.
const (
	ConflictResourceStatus = "resource_unavailable"
	ConflictWorkingHours   = "exceeds_working_hours"
	ConflictNoWorkingDays  = "no_working_days"
	ConflictWeeklyHours    = "overallocation"
)

// Weekdays lists the availability keys in calendar order.
var Weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

const clockLayout = "15:04"

type Conflict struct {
	Type         string       `json:"type"`
	Date         *models.Date `json:"date,omitempty"`
	WeekStarting *models.Date `json:"weekStarting,omitempty"`
	Message      string       `json:"message"`
}

// Request is a proposed allocation over the inclusive range [Start, End].
type Request struct {
	Start       models.Date
	End         models.Date
	HoursPerDay float64
}

// WindowHours is the length of a day's working window, or 0 when the day is
// not available.
func WindowHours(d models.DayAvailability) float64 {
	if !d.Available {
		return 0
	}
	start, err := time.Parse(clockLayout, d.Start)
	if err != nil {
		return 0
	}
	end, err := time.Parse(clockLayout, d.End)
	if err != nil || !end.After(start) {
		return 0
	}
	return end.Sub(start).Hours()
}

// ValidateAvailability requires an HH:MM window with start before end on
// every available day.
func ValidateAvailability(w models.WeeklyAvailability) error {
	for key, d := range w {
		if !isWeekday(key) {
			return fmt.Errorf("unknown weekday %q", key)
		}
		if d.Available && WindowHours(d) == 0 {
			return fmt.Errorf("%s needs a working window such as 09:00-17:00", key)
		}
	}
	return nil
}

func isWeekday(key string) bool {
	for _, d := range Weekdays {
		if d == key {
			return true
		}
	}
	return false
}

func dayOf(res models.Resource, t time.Time) models.DayAvailability {
	return res.Availability[strings.ToLower(t.Weekday().String())]
}

// eachDay calls fn for every day in the inclusive range [from, to].
func eachDay(from, to models.Date, fn func(time.Time)) {
	for d := from.Time; !d.After(to.Time); d = d.AddDate(0, 0, 1) {
		fn(d)
	}
}

// scheduledHours is the time an allocation places on available days within
// [from, to]. Unavailable days carry no hours.
func scheduledHours(res models.Resource, a models.ResourceAllocation, from, to models.Date) float64 {
	start, end := later(a.StartDate, from), earlier(a.EndDate, to)
	var hours float64
	eachDay(start, end, func(d time.Time) {
		if WindowHours(dayOf(res, d)) > 0 {
			hours += a.HoursPerDay
		}
	})
	return hours
}

func later(a, b models.Date) models.Date {
	if a.After(b.Time) {
		return a
	}
	return b
}

func earlier(a, b models.Date) models.Date {
	if a.Before(b.Time) {
		return a
	}
	return b
}

// WeekStart is the Monday of t's week.
func WeekStart(t time.Time) models.Date {
	offset := (int(t.Weekday()) + 6) % 7
	return models.NewDate(t.AddDate(0, 0, -offset))
}

// Check reports every reason the resource cannot take the request. Existing
// allocations that are not active are ignored. An empty result means the
// allocation fits.
func Check(res models.Resource, existing []models.ResourceAllocation, req Request) []Conflict {
	if res.Status != models.ResourceAvailable {
		return []Conflict{{Type: ConflictResourceStatus, Message: fmt.Sprintf("Resource is %s", res.Status)}}
	}

	conflicts := []Conflict{}
	working := 0
	eachDay(req.Start, req.End, func(d time.Time) {
		window := WindowHours(dayOf(res, d))
		if window == 0 {
			return
		}
		working++
		if req.HoursPerDay > window {
			date := models.NewDate(d)
			conflicts = append(conflicts, Conflict{
				Type:    ConflictWorkingHours,
				Date:    &date,
				Message: fmt.Sprintf("%.1fh exceeds the %.1fh working window", req.HoursPerDay, window),
			})
		}
	})
	if working == 0 {
		return append(conflicts, Conflict{Type: ConflictNoWorkingDays, Message: "Resource has no working days in the requested range"})
	}

	proposed := models.ResourceAllocation{StartDate: req.Start, EndDate: req.End, HoursPerDay: req.HoursPerDay}
	for week := WeekStart(req.Start.Time); !week.After(req.End.Time); week = models.NewDate(week.AddDate(0, 0, 7)) {
		weekEnd := models.NewDate(week.AddDate(0, 0, 6))
		committed := scheduledHours(res, proposed, week, weekEnd)
		for _, a := range existing {
			if a.Active() && overlaps(a, week, weekEnd) {
				committed += scheduledHours(res, a, week, weekEnd)
			}
		}
		if committed > res.MaxHoursPerWeek {
			ws := week
			conflicts = append(conflicts, Conflict{
				Type:         ConflictWeeklyHours,
				WeekStarting: &ws,
				Message:      fmt.Sprintf("%.1fh committed exceeds the %.1fh weekly limit", committed, res.MaxHoursPerWeek),
			})
		}
	}
	return conflicts
}

func overlaps(a models.ResourceAllocation, from, to models.Date) bool {
	return !a.StartDate.After(to.Time) && !a.EndDate.Before(from.Time)
}

type Capacity struct {
	ResourceID         string  `json:"resourceId"`
	Name               string  `json:"name"`
	Role               string  `json:"role"`
	AvailableHours     float64 `json:"availableHours"`
	PlannedHours       float64 `json:"plannedHours"`
	UtilizationPercent float64 `json:"utilizationPercentage"`
	Overallocated      bool    `json:"overallocated"`
	Projects           int     `json:"projects"`
}

// CapacityOf compares the resource's working hours in [from, to] with the
// hours its active allocations place there.
func CapacityOf(res models.Resource, allocations []models.ResourceAllocation, from, to models.Date) Capacity {
	var available float64
	eachDay(from, to, func(d time.Time) {
		available += WindowHours(dayOf(res, d))
	})
	planned, projects := plannedHours(res, allocations, from, to)
	return Capacity{
		ResourceID:         res.ID,
		Name:               res.Name,
		Role:               res.Role,
		AvailableHours:     utils.Round(available, 2),
		PlannedHours:       utils.Round(planned, 2),
		UtilizationPercent: utils.Round(utils.SafeDiv(planned, available)*100, 2),
		Overallocated:      planned > available,
		Projects:           projects,
	}
}

func plannedHours(res models.Resource, allocations []models.ResourceAllocation, from, to models.Date) (float64, int) {
	var hours float64
	projects := map[string]bool{}
	for _, a := range allocations {
		if a.ResourceID != res.ID || !a.Active() || !overlaps(a, from, to) {
			continue
		}
		hours += scheduledHours(res, a, from, to)
		projects[a.ProjectID] = true
	}
	return hours, len(projects)
}

type TaskRef struct {
	ID         string      `json:"id"`
	ProjectID  string      `json:"projectId"`
	Name       string      `json:"name"`
	PlannedEnd models.Date `json:"plannedEnd"`
}

type Workload struct {
	ResourceID         string    `json:"resourceId"`
	Name               string    `json:"name"`
	PlannedHours       float64   `json:"plannedHours"`
	CapacityHours      float64   `json:"capacityHours"`
	UtilizationPercent float64   `json:"utilizationPercentage"`
	Projects           int       `json:"projects"`
	OverdueTasks       []TaskRef `json:"overdueTasks"`
	UpcomingTasks      []TaskRef `json:"upcomingTasks"`
	Recommendations    []string  `json:"recommendations"`
}

// UpcomingDays is how far ahead a task deadline counts as upcoming.
const UpcomingDays = 7

// WorkloadOf measures the resource against its weekly limit pro rata over
// [from, to] and lists its open tasks that are overdue or due within a week
// of today.
func WorkloadOf(res models.Resource, allocations []models.ResourceAllocation, tasks []models.ProjectTask, from, to, today models.Date) Workload {
	days := float64(from.DaysUntil(to) + 1)
	capacity := res.MaxHoursPerWeek * days / 7
	hours, projects := plannedHours(res, allocations, from, to)
	utilization := utils.SafeDiv(hours, capacity) * 100

	w := Workload{
		ResourceID:         res.ID,
		Name:               res.Name,
		PlannedHours:       utils.Round(hours, 2),
		CapacityHours:      utils.Round(capacity, 2),
		UtilizationPercent: utils.Round(utilization, 2),
		Projects:           projects,
		OverdueTasks:       []TaskRef{},
		UpcomingTasks:      []TaskRef{},
		Recommendations:    []string{},
	}

	horizon := today.AddDate(0, 0, UpcomingDays)
	for _, t := range tasks {
		if t.AssigneeResourceID != res.ID || t.CompletedAt != nil || t.PlannedEnd.IsZero() {
			continue
		}
		ref := TaskRef{ID: t.ID, ProjectID: t.ProjectID, Name: t.Name, PlannedEnd: t.PlannedEnd}
		switch {
		case t.PlannedEnd.Before(today.Time):
			w.OverdueTasks = append(w.OverdueTasks, ref)
		case !t.PlannedEnd.After(horizon):
			w.UpcomingTasks = append(w.UpcomingTasks, ref)
		}
	}

	switch {
	case utilization > 90:
		w.Recommendations = append(w.Recommendations, "Resource is overutilized. Consider redistributing work.")
	case utilization < 50:
		w.Recommendations = append(w.Recommendations, "Resource has spare capacity for additional work.")
	}
	if n := len(w.OverdueTasks); n > 0 {
		w.Recommendations = append(w.Recommendations, fmt.Sprintf("%d overdue tasks need attention.", n))
	}
	if n := len(w.UpcomingTasks); n > 0 {
		w.Recommendations = append(w.Recommendations, fmt.Sprintf("%d tasks are due within %d days.", n, UpcomingDays))
	}
	return w
}
