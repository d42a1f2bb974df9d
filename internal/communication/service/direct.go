package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	commdomain "github.com/glitchidea/glichflow/internal/communication/domain"
	"github.com/glitchidea/glichflow/internal/events"
	"github.com/glitchidea/glichflow/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) GetOrCreateDirectMessage(ctx context.Context, userA, userB string) (*commdomain.DirectMessageResponse, error) {
	a, err := parseID(userA)
	if err != nil {
		return nil, err
	}
	b, err := parseID(userB)
	if err != nil {
		return nil, err
	}
	if a == b {
		return nil, commdomain.ErrSelfMessage
	}
	user1, user2 := commdomain.OrderedPair(a, b)

	existing, err := s.repo.FindDirectMessage(ctx, s.db, user1, user2)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return toDirectMessageResponse(existing, false), nil
	}

	for _, id := range []snowflake.ID{user1, user2} {
		user, err := s.userRepo.FindByID(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, commdomain.ErrNotFound
		}
	}

	thread := s.newThread("direct", nil, true)
	dm := &commdomain.DirectMessage{
		ID:        s.genID.Generate(),
		User1ID:   user1,
		User2ID:   user2,
		ThreadID:  thread.ID,
		CreatedAt: thread.CreatedAt,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertThread(ctx, tx, thread); err != nil {
			return err
		}
		return s.repo.InsertDirectMessage(ctx, tx, dm)
	})
	if err != nil {
		if !db.IsDuplicateKeyErr(err) {
			return nil, err
		}
		// Lost the race against another request for the same pair.
		existing, findErr := s.repo.FindDirectMessage(ctx, s.db, user1, user2)
		if findErr != nil {
			return nil, findErr
		}
		if existing == nil {
			return nil, err
		}
		return toDirectMessageResponse(existing, false), nil
	}
	return toDirectMessageResponse(dm, true), nil
}

// MergeDuplicateDirectMessages folds conversations stored for the same pair
// in both orientations into the oldest one, then stores every pair ordered.
func (s *Service) MergeDuplicateDirectMessages(ctx context.Context) (*commdomain.MergeReport, error) {
	report := &commdomain.MergeReport{}
	var merged []events.DirectMessagesMerged

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := s.repo.ListDirectMessages(ctx, tx)
		if err != nil {
			return err
		}

		type pair struct{ a, b snowflake.ID }
		groups := make(map[pair][]commdomain.DirectMessage)
		order := make([]pair, 0)
		for _, row := range rows {
			if row.User1ID == row.User2ID {
				continue
			}
			u1, u2 := commdomain.OrderedPair(row.User1ID, row.User2ID)
			key := pair{u1, u2}
			if _, ok := groups[key]; !ok {
				order = append(order, key)
			}
			groups[key] = append(groups[key], row)
		}

		for _, key := range order {
			group := groups[key]
			kept := group[0]
			removed := make([]snowflake.ID, 0, len(group)-1)
			for _, dup := range group[1:] {
				moved, err := s.repo.MoveMessages(ctx, tx, dup.ThreadID, kept.ThreadID)
				if err != nil {
					return err
				}
				report.MessagesMoved += moved
				if err := s.repo.DeleteDirectMessage(ctx, tx, dup.ID); err != nil {
					return err
				}
				if err := s.repo.DeleteThread(ctx, tx, dup.ThreadID); err != nil {
					return err
				}
				removed = append(removed, dup.ID)
			}

			if kept.User1ID != key.a || kept.User2ID != key.b {
				if err := s.repo.UpdateDirectMessagePair(ctx, tx, kept.ID, key.a, key.b); err != nil {
					return err
				}
			}
			if len(removed) > 0 {
				report.Groups++
				report.Removed += len(removed)
				merged = append(merged, events.DirectMessagesMerged{KeptID: kept.ID, RemovedID: removed})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, event := range merged {
		s.events.Publish(ctx, event)
	}
	if report.Groups > 0 {
		s.log.Info("merged duplicate direct messages",
			zap.Int("groups", report.Groups),
			zap.Int("removed", report.Removed),
			zap.Int64("messages_moved", report.MessagesMoved),
		)
	}
	return report, nil
}

func toDirectMessageResponse(dm *commdomain.DirectMessage, created bool) *commdomain.DirectMessageResponse {
	return &commdomain.DirectMessageResponse{
		ID:       dm.ID.String(),
		User1ID:  dm.User1ID.String(),
		User2ID:  dm.User2ID.String(),
		ThreadID: dm.ThreadID.String(),
		Created:  created,
	}
}
