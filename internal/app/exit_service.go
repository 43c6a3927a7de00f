package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hive_fund/internal/domain/circle"
	"hive_fund/internal/domain/exit"
	"hive_fund/internal/domain/notification"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type ExitService struct {
	circles   circle.Repository
	exits     exit.Repository
	notifier  notification.Notifier
	logger    *logrus.Entry
	clock     func() time.Time
	voteLocks *keyedMutex
}

func NewExitService(circles circle.Repository, exits exit.Repository, notifier notification.Notifier, logger *logrus.Entry, opts ...Option) *ExitService {
	o := applyOptions(opts)
	return &ExitService{
		circles:   circles,
		exits:     exits,
		notifier:  notifier,
		logger:    logger.WithField("component", "exit"),
		clock:     o.clock,
		voteLocks: newKeyedMutex(),
	}
}

// CreateExitRequest opens a PENDING request for an active member.
func (s *ExitService) CreateExitRequest(ctx context.Context, circleID, userID uuid.UUID, reason string) (*exit.Request, error) {
	if _, err := s.circles.GetCircleByID(ctx, circleID); err != nil {
		return nil, err
	}
	r, err := exit.NewRequest(circleID, userID, reason, s.clock())
	if err != nil {
		return nil, err
	}
	if err := s.exits.CreateRequest(ctx, r); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"circle_id":  circleID,
		"user_id":    userID,
		"request_id": r.ID,
	}).Info("Exit request created")
	return r, nil
}

// Vote records one peer decision and resolves the request when a side
// reaches the majority of the currently active members.
func (s *ExitService) Vote(ctx context.Context, circleID, requestID, voterID uuid.UUID, approve bool) (*exit.Outcome, error) {
	unlock := s.voteLocks.Lock(requestID)
	defer unlock()

	now := s.clock()
	v := &exit.Vote{
		ID:        uuid.New(),
		RequestID: requestID,
		VoterID:   voterID,
		Approve:   approve,
		CreatedAt: now,
	}
	out, err := s.exits.CastVote(ctx, circleID, v, now)
	if err != nil {
		return nil, err
	}

	log := s.logger.WithFields(logrus.Fields{
		"circle_id":     circleID,
		"request_id":    requestID,
		"voter_id":      voterID,
		"votes_for":     out.Request.VotesFor,
		"votes_against": out.Request.VotesAgainst,
		"threshold":     out.Tally.MajorityThreshold,
	})
	if !out.Request.Status.IsTerminal() {
		log.Info("Exit vote recorded")
		return out, nil
	}

	log.WithField("status", out.Request.Status).Info("Exit request resolved")
	name := ""
	if c, err := s.circles.GetCircleByID(ctx, circleID); err == nil {
		name = c.Name
	}
	err = s.notifier.Notify(ctx, notification.Event{
		Type:       notification.EventExitResolved,
		CircleID:   circleID,
		CircleName: name,
		UserID:     out.Request.UserID,
		Detail:     fmt.Sprintf("exit request %s", out.Request.Status),
		OccurredAt: now,
	})
	if err != nil {
		s.logger.WithError(err).Warn("Failed to deliver notification")
	}
	return out, nil
}

// ListExitRequests is visible to members only.
func (s *ExitService) ListExitRequests(ctx context.Context, circleID, userID uuid.UUID) ([]*exit.Request, error) {
	if _, err := s.circles.GetMember(ctx, circleID, userID); err != nil {
		if errors.Is(err, circle.ErrMemberNotFound) {
			return nil, ErrNotMember
		}
		return nil, err
	}
	return s.exits.ListRequestsByCircle(ctx, circleID)
}
