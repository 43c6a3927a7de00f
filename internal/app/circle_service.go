package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hive_fund/internal/domain/apperr"
	"hive_fund/internal/domain/circle"
	"hive_fund/internal/domain/notification"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const inviteCodeAttempts = 5

var (
	ErrNotCreator     = apperr.New(apperr.Forbidden, "only the circle creator can start a cycle")
	ErrNotMember      = apperr.New(apperr.Forbidden, "you are not a member of this circle")
	ErrTermsRequired  = apperr.New(apperr.BadRequest, "you must agree to the circle terms to join")
	ErrCircleFinished = apperr.New(apperr.Conflict, "circle has already finished")
)

// CircleDetail is a circle with its members ordered by payout position.
type CircleDetail struct {
	Circle  *circle.Circle
	Members []*circle.Member
}

// Timeline is the payout schedule of a circle's current (or latest) cycle.
type Timeline struct {
	CircleID    uuid.UUID
	CircleName  string
	CycleNumber int
	CycleStatus circle.CycleStatus
	StartDate   time.Time
	EndDate     time.Time
	Entries     []*circle.ScheduleEntry
}

// CycleStarted is the result of a successful lottery.
type CycleStarted struct {
	Cycle   *circle.Cycle
	Members []*circle.Member // in payout order
	Entries []*circle.ScheduleEntry
}

type CircleService struct {
	circles    circle.Repository
	notifier   notification.Notifier
	logger     *logrus.Entry
	clock      func() time.Time
	shuffle    circle.ShuffleFunc
	startLocks *keyedMutex
	joinLocks  *keyedMutex
}

func NewCircleService(repo circle.Repository, notifier notification.Notifier, logger *logrus.Entry, opts ...Option) *CircleService {
	o := applyOptions(opts)
	return &CircleService{
		circles:    repo,
		notifier:   notifier,
		logger:     logger.WithField("component", "circle"),
		clock:      o.clock,
		shuffle:    o.shuffle,
		startLocks: newKeyedMutex(),
		joinLocks:  newKeyedMutex(),
	}
}

// CreateCircle validates the terms and stores a FORMING circle with its
// founder at payout position 1.
func (s *CircleService) CreateCircle(ctx context.Context, userID uuid.UUID, terms circle.Terms) (*CircleDetail, error) {
	now := s.clock()
	for attempt := 1; ; attempt++ {
		c, err := circle.NewCircle(terms, now)
		if err != nil {
			return nil, err
		}
		founder := &circle.Member{
			ID:             uuid.New(),
			CircleID:       c.ID,
			UserID:         userID,
			PayoutPosition: 1,
			Status:         circle.MemberActive,
			JoinedAt:       now,
		}
		err = s.circles.CreateCircle(ctx, c, founder)
		if errors.Is(err, circle.ErrInviteCodeTaken) && attempt < inviteCodeAttempts {
			s.logger.WithField("attempt", attempt).Warn("Invite code collision, regenerating")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create circle: %w", err)
		}
		s.logger.WithFields(logrus.Fields{
			"circle_id": c.ID,
			"user_id":   userID,
		}).Info("Circle created")
		return &CircleDetail{Circle: c, Members: []*circle.Member{founder}}, nil
	}
}

// PreviewByInviteCode shows what a prospective member is about to join.
func (s *CircleService) PreviewByInviteCode(ctx context.Context, code string) (*circle.Preview, error) {
	c, err := s.circles.GetCircleByInviteCode(ctx, code)
	if err != nil {
		return nil, err
	}
	count, err := s.circles.CountMembers(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}
	return &circle.Preview{
		ID:                 c.ID,
		Name:               c.Name,
		ContributionAmount: c.ContributionAmount,
		Frequency:          c.Frequency,
		MaxMembers:         c.MaxMembers,
		CurrentMembers:     count,
		Status:             c.Status,
		InviteCode:         c.InviteCode,
	}, nil
}

// JoinByInviteCode resolves the code and joins the circle behind it.
func (s *CircleService) JoinByInviteCode(ctx context.Context, userID uuid.UUID, code string, agreedToTerms bool) (*circle.Member, error) {
	c, err := s.circles.GetCircleByInviteCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.Join(ctx, c.ID, userID, agreedToTerms)
}

// Join adds the user at the next payout position. Capacity and duplicate
// membership are checked atomically with the insert. Joining is only open
// while the circle is FORMING; afterwards it fails with
// circle.ErrCircleNotForming.
func (s *CircleService) Join(ctx context.Context, circleID, userID uuid.UUID, agreedToTerms bool) (*circle.Member, error) {
	if !agreedToTerms {
		return nil, ErrTermsRequired
	}
	return s.join(ctx, circleID, userID)
}

func (s *CircleService) join(ctx context.Context, circleID, userID uuid.UUID) (*circle.Member, error) {
	unlock := s.joinLocks.Lock(circleID)
	defer unlock()

	m, err := s.circles.AddMember(ctx, circleID, userID, s.clock())
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"circle_id": circleID,
			"user_id":   userID,
		}).WithError(err).Debug("Join rejected")
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"circle_id": circleID,
		"user_id":   userID,
		"position":  m.PayoutPosition,
	}).Info("Member joined circle")
	return m, nil
}

func (s *CircleService) ListMyCircles(ctx context.Context, userID uuid.UUID) ([]*circle.Circle, error) {
	return s.circles.ListCirclesByUser(ctx, userID)
}

func (s *CircleService) GetCircle(ctx context.Context, circleID uuid.UUID) (*CircleDetail, error) {
	c, err := s.circles.GetCircleByID(ctx, circleID)
	if err != nil {
		return nil, err
	}
	members, err := s.circles.ListMembers(ctx, circleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return &CircleDetail{Circle: c, Members: members}, nil
}

// ListMembers is visible to members only.
func (s *CircleService) ListMembers(ctx context.Context, circleID, userID uuid.UUID) ([]*circle.Member, error) {
	if err := s.requireMember(ctx, circleID, userID); err != nil {
		return nil, err
	}
	return s.circles.ListMembers(ctx, circleID)
}

// Timeline returns the schedule of the current cycle, or of the latest one
// once the circle has completed. Only members may see it.
func (s *CircleService) Timeline(ctx context.Context, circleID, userID uuid.UUID) (*Timeline, error) {
	c, err := s.circles.GetCircleByID(ctx, circleID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, circleID, userID); err != nil {
		return nil, err
	}
	return s.ScheduleOf(ctx, c)
}

// ScheduleOf builds the timeline of an already loaded circle without a
// membership check. It serves operator tooling.
func (s *CircleService) ScheduleOf(ctx context.Context, c *circle.Circle) (*Timeline, error) {
	var (
		cy  *circle.Cycle
		err error
	)
	if c.CurrentCycleID.Valid {
		cy, err = s.circles.GetCycleByID(ctx, c.CurrentCycleID.UUID)
	} else {
		cy, err = s.circles.GetLatestCycle(ctx, c.ID)
	}
	if err != nil {
		return nil, err
	}
	entries, err := s.circles.ListEntriesByCycle(ctx, cy.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedule: %w", err)
	}
	return &Timeline{
		CircleID:    c.ID,
		CircleName:  c.Name,
		CycleNumber: cy.Number,
		CycleStatus: cy.Status,
		StartDate:   cy.StartDate,
		EndDate:     cy.EndDate,
		Entries:     entries,
	}, nil
}

// StartCycle runs the payout lottery over the active members and commits the
// resulting cycle and schedule. Only the creator may start a cycle: the active
// member holding the lowest payout position, so a circle whose founder exited
// before the first lottery is started by the next member in line. A circle
// never has two open cycles.
func (s *CircleService) StartCycle(ctx context.Context, circleID, userID uuid.UUID) (*CycleStarted, error) {
	unlock := s.startLocks.Lock(circleID)
	defer unlock()

	log := s.logger.WithFields(logrus.Fields{
		"circle_id": circleID,
		"user_id":   userID,
	})

	c, err := s.circles.GetCircleByID(ctx, circleID)
	if err != nil {
		return nil, err
	}
	members, err := s.circles.ListMembers(ctx, circleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	if creator := circle.Creator(members); creator == nil || creator.UserID != userID {
		return nil, ErrNotCreator
	}
	switch {
	case c.Status == circle.StatusActive:
		return nil, circle.ErrCycleAlreadyActive
	case c.Status.IsTerminal():
		return nil, ErrCircleFinished
	}

	if active := len(circle.ActiveMembers(members)); active < circle.MinMembers {
		return nil, apperr.BadRequestf("circle must have at least %d members to start. Current: %d", circle.MinMembers, active)
	}

	count, err := s.circles.CountCycles(ctx, circleID)
	if err != nil {
		return nil, fmt.Errorf("failed to count cycles: %w", err)
	}

	now := s.clock()
	rotation := circle.DrawLottery(members, s.shuffle)
	plan := circle.GenerateSchedule(rotation, c.ContributionAmount, c.Frequency, now)
	cy := &circle.Cycle{
		ID:        uuid.New(),
		CircleID:  circleID,
		Number:    count + 1,
		StartDate: now,
		EndDate:   plan.EndDate,
		Status:    circle.CycleActive,
		CreatedAt: now,
	}
	for _, e := range plan.Entries {
		e.ID = uuid.New()
		e.CycleID = cy.ID
		e.UpdatedAt = now
	}

	err = s.circles.StartCycle(ctx, &circle.CycleStart{
		CircleID: circleID,
		Rotation: rotation,
		Cycle:    cy,
		Entries:  plan.Entries,
	})
	if err != nil {
		log.WithError(err).Warn("Failed to start cycle")
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"cycle_id":     cy.ID,
		"cycle_number": cy.Number,
		"members":      len(rotation),
	}).Info("Cycle started")

	s.notify(ctx, notification.Event{
		Type:       notification.EventCycleStarted,
		CircleID:   c.ID,
		CircleName: c.Name,
		UserID:     userID,
		Amount:     plan.Entries[0].Amount,
		Detail:     fmt.Sprintf("cycle %d started with %d members", cy.Number, len(rotation)),
		OccurredAt: now,
	})

	return &CycleStarted{Cycle: cy, Members: rotation, Entries: plan.Entries}, nil
}

func (s *CircleService) requireMember(ctx context.Context, circleID, userID uuid.UUID) error {
	_, err := s.circles.GetMember(ctx, circleID, userID)
	if errors.Is(err, circle.ErrMemberNotFound) {
		return ErrNotMember
	}
	return err
}

func (s *CircleService) notify(ctx context.Context, e notification.Event) {
	if err := s.notifier.Notify(ctx, e); err != nil {
		s.logger.WithError(err).WithField("event", e.Type).Warn("Failed to deliver notification")
	}
}
