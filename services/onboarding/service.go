package onboarding

import (
	"context"
	"sync"
	"time"

	"github.com/campusflow/campus-flow-api/realtime"
	"github.com/campusflow/campus-flow-api/utils/logger"
)

// Service drives one Flow per user across HTTP requests
type Service struct {
	catalog   Catalog
	profiles  ProfileWriter
	store     Store
	publisher realtime.Publisher
	delay     time.Duration

	locks   sync.Map // user id -> *sync.Mutex
	pending sync.Map // user id -> *Flow with a scheduled auto-advance
}

func NewService(cat Catalog, profiles ProfileWriter, store Store, publisher realtime.Publisher, autoAdvanceDelay time.Duration) *Service {
	if publisher == nil {
		publisher = realtime.NopPublisher{}
	}
	return &Service{
		catalog:   cat,
		profiles:  profiles,
		store:     store,
		publisher: publisher,
		delay:     autoAdvanceDelay,
	}
}

func (s *Service) lock(userID uint) func() {
	m, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *Service) flow(userID uint, state *State) *Flow {
	toaster := realtime.UserToaster{Publisher: s.publisher, UserID: userID}
	opts := Options{
		AutoAdvanceDelay: s.delay,
		OnChange: func(st State) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.store.Save(ctx, userID, st); err != nil {
				logger.Warn().Err(err).Uint("user_id", userID).Msg("failed to persist auto-advanced onboarding state")
			}
		},
	}
	if state == nil {
		return NewFlow(userID, s.catalog, s.profiles, toaster, opts)
	}
	return Restore(*state, userID, s.catalog, s.profiles, toaster, opts)
}

// load restores the stored flow, starting a new one when none exists.
// A flow left waiting on an auto-advance by an earlier request is stopped first.
func (s *Service) load(ctx context.Context, userID uint) (*Flow, error) {
	if old, ok := s.pending.LoadAndDelete(userID); ok {
		old.(*Flow).Stop()
	}

	state, err := s.store.Load(ctx, userID)
	if err != nil {
		logger.Warn().Err(err).Uint("user_id", userID).Msg("onboarding state unavailable, starting over")
		state = nil
	}
	f := s.flow(userID, state)
	if state == nil || !state.Loaded {
		if err := f.Start(ctx); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (s *Service) run(ctx context.Context, userID uint, op func(*Flow) error) (State, error) {
	unlock := s.lock(userID)
	defer unlock()

	f, err := s.load(ctx, userID)
	if err != nil {
		return State{}, err
	}
	opErr := op(f)
	if s.delay > 0 {
		s.pending.Store(userID, f)
	}
	state := f.State()
	if err := s.store.Save(ctx, userID, state); err != nil {
		return state, err
	}
	return state, opErr
}

// Get returns the current state, loading colleges on first use
func (s *Service) Get(ctx context.Context, userID uint) (State, error) {
	return s.run(ctx, userID, func(*Flow) error { return nil })
}

func (s *Service) SelectCollege(ctx context.Context, userID, collegeID uint) (State, error) {
	return s.run(ctx, userID, func(f *Flow) error { return f.SelectCollege(ctx, collegeID) })
}

func (s *Service) SelectCourse(ctx context.Context, userID, courseID uint) (State, error) {
	return s.run(ctx, userID, func(f *Flow) error { return f.SelectCourse(ctx, courseID) })
}

func (s *Service) SelectYear(ctx context.Context, userID, yearID uint) (State, error) {
	return s.run(ctx, userID, func(f *Flow) error { return f.SelectYear(ctx, yearID) })
}

func (s *Service) SelectSemester(ctx context.Context, userID uint, semester int) (State, error) {
	return s.run(ctx, userID, func(f *Flow) error { return f.SelectSemester(semester) })
}

// Complete saves the selection and forgets the flow
func (s *Service) Complete(ctx context.Context, userID uint) (string, error) {
	unlock := s.lock(userID)
	defer unlock()

	f, err := s.load(ctx, userID)
	if err != nil {
		return "", err
	}
	redirect, err := f.Complete(ctx)
	if err != nil {
		return "", err
	}
	if err := s.store.Delete(ctx, userID); err != nil {
		logger.Warn().Err(err).Uint("user_id", userID).Msg("failed to clear onboarding state")
	}
	return redirect, nil
}

// Reset discards the stored flow
func (s *Service) Reset(ctx context.Context, userID uint) error {
	unlock := s.lock(userID)
	defer unlock()
	return s.store.Delete(ctx, userID)
}
