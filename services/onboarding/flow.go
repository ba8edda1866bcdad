package onboarding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/realtime"
	"github.com/campusflow/campus-flow-api/services/catalog"
)

// InitialFetchTimeout bounds the first college fetch
const InitialFetchTimeout = 15 * time.Second

// DashboardPath is where clients go after Complete
const DashboardPath = "/dashboard"

var (
	ErrUnknownCollege  = errors.New("college is not in the current list")
	ErrUnknownCourse   = errors.New("course is not in the current list")
	ErrUnknownYear     = errors.New("year is not in the current list")
	ErrInvalidSemester = errors.New("semester is not offered in the selected year")
	ErrOutOfOrder      = errors.New("previous level has not been selected")
	ErrIncomplete      = errors.New("college, course, year and semester are all required")
)

type Step string

const (
	StepCollege  Step = "college"
	StepCourse   Step = "course"
	StepYear     Step = "year"
	StepSemester Step = "semester"
	StepReview   Step = "review"
)

// Catalog supplies the lists shown at each level
type Catalog interface {
	Colleges(ctx context.Context) ([]model.College, error)
	Courses(ctx context.Context, collegeID uint) ([]model.Course, error)
	Years(ctx context.Context, courseID uint) ([]model.Year, error)
}

// ProfileWriter persists a finished selection
type ProfileWriter interface {
	SaveSelection(ctx context.Context, userID uint, sel Selection) error
}

// Selection is the completed College/Course/Year/Semester choice
type Selection struct {
	CollegeID uint
	CourseID  uint
	YearID    uint
	Semester  int
}

// SemesterLabel is the value stored in the auth metadata
func (s Selection) SemesterLabel() string {
	return catalog.SemesterLabel(s.Semester)
}

// State is the serialisable snapshot of a flow
type State struct {
	Step      Step            `json:"step"`
	Colleges  []model.College `json:"colleges"`
	Courses   []model.Course  `json:"courses"`
	Years     []model.Year    `json:"years"`
	Semesters []int           `json:"semesters"`
	CollegeID *uint           `json:"college_id,omitempty"`
	CourseID  *uint           `json:"course_id,omitempty"`
	YearID    *uint           `json:"year_id,omitempty"`
	Semester  *int            `json:"semester,omitempty"`
	Loaded    bool            `json:"loaded"`
}

// Options configures a Flow
type Options struct {
	// AutoAdvanceDelay is waited before a single-option level is selected; zero selects immediately
	AutoAdvanceDelay time.Duration
	// OnChange is called with a snapshot after an asynchronous auto-advance
	OnChange func(State)
}

// Flow is the cascading College -> Course -> Year -> Semester picker for one user
type Flow struct {
	mu       sync.Mutex
	state    State
	userID   uint
	catalog  Catalog
	profiles ProfileWriter
	toaster  realtime.Toaster
	opts     Options
	timer    *time.Timer
	// generation invalidates pending auto-advance timers when the user selects something
	generation int
}

func NewFlow(userID uint, cat Catalog, profiles ProfileWriter, toaster realtime.Toaster, opts Options) *Flow {
	return &Flow{
		userID:   userID,
		catalog:  cat,
		profiles: profiles,
		toaster:  toaster,
		opts:     opts,
		state:    State{Step: StepCollege},
	}
}

// Restore resumes a flow from a stored snapshot
func Restore(state State, userID uint, cat Catalog, profiles ProfileWriter, toaster realtime.Toaster, opts Options) *Flow {
	f := NewFlow(userID, cat, profiles, toaster, opts)
	f.state = state
	return f
}

// State returns a copy of the current snapshot
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot()
}

func (f *Flow) snapshot() State {
	s := f.state
	s.Colleges = append([]model.College(nil), f.state.Colleges...)
	s.Courses = append([]model.Course(nil), f.state.Courses...)
	s.Years = append([]model.Year(nil), f.state.Years...)
	s.Semesters = append([]int(nil), f.state.Semesters...)
	return s
}

// Stop cancels a pending auto-advance
func (f *Flow) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelTimer()
}

func (f *Flow) cancelTimer() {
	f.generation++
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}

func (f *Flow) fail(title string, err error) error {
	if f.toaster != nil {
		f.toaster.Error(title, err.Error())
	}
	return err
}

// Start fetches the colleges, racing the fetch against InitialFetchTimeout
func (f *Flow) Start(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, InitialFetchTimeout)
	defer cancel()

	type result struct {
		colleges []model.College
		err      error
	}
	done := make(chan result, 1)
	go func() {
		colleges, err := f.catalog.Colleges(ctx)
		done <- result{colleges, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = fmt.Errorf("loading colleges timed out: %w", ctx.Err())
	}
	if res.err != nil {
		return f.fail("Failed to load colleges", res.err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelTimer()
	f.state = State{Step: StepCollege, Colleges: res.colleges, Loaded: true}
	return nil
}

// SelectCollege records the college, clears lower levels and fetches its courses
func (f *Flow) SelectCollege(ctx context.Context, collegeID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelTimer()
	return f.selectCollege(ctx, collegeID)
}

func (f *Flow) selectCollege(ctx context.Context, collegeID uint) error {
	if !containsCollege(f.state.Colleges, collegeID) {
		return ErrUnknownCollege
	}

	f.state.CollegeID = &collegeID
	f.state.CourseID, f.state.YearID, f.state.Semester = nil, nil, nil
	f.state.Courses, f.state.Years, f.state.Semesters = nil, nil, nil
	f.state.Step = StepCourse

	courses, err := f.catalog.Courses(ctx, collegeID)
	if err != nil {
		return f.fail("Failed to load courses", err)
	}
	f.state.Courses = courses

	if len(courses) == 1 {
		only := courses[0].ID
		return f.autoAdvance(ctx, func(c context.Context) error {
			if f.state.CourseID != nil || f.state.CollegeID == nil || *f.state.CollegeID != collegeID {
				return nil
			}
			return f.selectCourse(c, only)
		})
	}
	return nil
}

// SelectCourse records the course, clears the year and fetches its years
func (f *Flow) SelectCourse(ctx context.Context, courseID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelTimer()
	return f.selectCourse(ctx, courseID)
}

func (f *Flow) selectCourse(ctx context.Context, courseID uint) error {
	if f.state.CollegeID == nil {
		return ErrOutOfOrder
	}
	if !containsCourse(f.state.Courses, courseID) {
		return ErrUnknownCourse
	}

	f.state.CourseID = &courseID
	f.state.YearID, f.state.Semester = nil, nil
	f.state.Years, f.state.Semesters = nil, nil
	f.state.Step = StepYear

	years, err := f.catalog.Years(ctx, courseID)
	if err != nil {
		return f.fail("Failed to load years", err)
	}
	f.state.Years = catalog.DedupYears(years)

	if len(f.state.Years) == 1 {
		only := f.state.Years[0].ID
		return f.autoAdvance(ctx, func(c context.Context) error {
			if f.state.YearID != nil || f.state.CourseID == nil || *f.state.CourseID != courseID {
				return nil
			}
			return f.selectYear(only)
		})
	}
	return nil
}

// SelectYear records the year and computes its semesters
func (f *Flow) SelectYear(ctx context.Context, yearID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelTimer()
	return f.selectYear(yearID)
}

func (f *Flow) selectYear(yearID uint) error {
	if f.state.CourseID == nil {
		return ErrOutOfOrder
	}
	var year *model.Year
	for i := range f.state.Years {
		if f.state.Years[i].ID == yearID {
			year = &f.state.Years[i]
			break
		}
	}
	if year == nil {
		return ErrUnknownYear
	}

	f.state.YearID = &yearID
	f.state.Semester = nil
	f.state.Semesters = catalog.SemesterNumbers(year.YearNumber, year.TotalSemesters)
	f.state.Step = StepSemester
	return nil
}

// SelectSemester accepts only one of the semesters computed for the year
func (f *Flow) SelectSemester(semester int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelTimer()

	if f.state.YearID == nil {
		return ErrOutOfOrder
	}
	for _, s := range f.state.Semesters {
		if s == semester {
			f.state.Semester = &semester
			f.state.Step = StepReview
			return nil
		}
	}
	return ErrInvalidSemester
}

// Complete persists the selection and returns the dashboard path
func (f *Flow) Complete(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelTimer()

	s := f.state
	if s.CollegeID == nil || s.CourseID == nil || s.YearID == nil || s.Semester == nil {
		return "", ErrIncomplete
	}

	sel := Selection{CollegeID: *s.CollegeID, CourseID: *s.CourseID, YearID: *s.YearID, Semester: *s.Semester}
	if err := f.profiles.SaveSelection(ctx, f.userID, sel); err != nil {
		return "", f.fail("Failed to save your selection", err)
	}
	return DashboardPath, nil
}

// autoAdvance runs next immediately when there is no delay, otherwise after the
// delay on a timer that is discarded if the user selects anything first.
// Callers hold f.mu.
func (f *Flow) autoAdvance(ctx context.Context, next func(context.Context) error) error {
	if f.opts.AutoAdvanceDelay <= 0 {
		return next(ctx)
	}

	gen := f.generation
	f.timer = time.AfterFunc(f.opts.AutoAdvanceDelay, func() {
		f.mu.Lock()
		if gen != f.generation {
			f.mu.Unlock()
			return
		}
		f.timer = nil
		// the request that scheduled us has finished; give the fetch its own deadline
		c, cancel := context.WithTimeout(context.Background(), InitialFetchTimeout)
		err := next(c)
		cancel()
		snap := f.snapshot()
		f.mu.Unlock()

		if err == nil && f.opts.OnChange != nil {
			f.opts.OnChange(snap)
		}
	})
	return nil
}

func containsCollege(list []model.College, id uint) bool {
	for _, c := range list {
		if c.ID == id {
			return true
		}
	}
	return false
}

func containsCourse(list []model.Course, id uint) bool {
	for _, c := range list {
		if c.ID == id {
			return true
		}
	}
	return false
}
