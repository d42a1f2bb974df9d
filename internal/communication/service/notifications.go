package service

import (
	"context"
	"strings"

	commdomain "github.com/glitchidea/glichflow/internal/communication/domain"
	"github.com/glitchidea/glichflow/pkg/db/option"
	"github.com/glitchidea/glichflow/pkg/db/pagination"
)

// Notify stores a notification once per (user, kind, subject). It reports
// whether a new row was written.
func (s *Service) Notify(ctx context.Context, req commdomain.NotifyRequest) (bool, error) {
	kind := strings.TrimSpace(req.Kind)
	subjectType := strings.TrimSpace(req.SubjectType)
	if req.UserID == 0 || req.SubjectID == 0 || kind == "" || subjectType == "" {
		return false, commdomain.ErrInvalidID
	}
	return s.repo.InsertNotification(ctx, s.db, &commdomain.Notification{
		ID:          s.genID.Generate(),
		UserID:      req.UserID,
		Kind:        kind,
		SubjectType: subjectType,
		SubjectID:   req.SubjectID,
		Message:     strings.TrimSpace(req.Message),
		CreatedAt:   s.clock.Now(),
	})
}

func (s *Service) ListNotifications(ctx context.Context, userID string, page pagination.Pagination) (*commdomain.NotificationPage, error) {
	id, err := parseID(userID)
	if err != nil {
		return nil, err
	}
	if page.PageToken != "" {
		if _, err := pagination.DecodeCursor(page.PageToken); err != nil {
			return nil, commdomain.ErrInvalidCursor
		}
	}
	if page.PageSize <= 0 {
		page.PageSize = 20
	}

	items, err := s.notifications.Find(ctx, &commdomain.Notification{UserID: id},
		option.ApplyPagination(page),
		option.WithOrder("id DESC"),
	)
	if err != nil {
		return nil, err
	}

	pageInfo, items := pagination.BuildCursorPageInfo(items, page.PageSize, func(n *commdomain.Notification) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: n.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})

	out := make([]commdomain.NotificationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, commdomain.NotificationResponse{
			ID:          item.ID.String(),
			Kind:        item.Kind,
			SubjectType: item.SubjectType,
			SubjectID:   item.SubjectID.String(),
			Message:     item.Message,
			ReadAt:      item.ReadAt,
			CreatedAt:   item.CreatedAt,
		})
	}
	return &commdomain.NotificationPage{Items: out, PageInfo: pageInfo}, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int64, error) {
	id, err := parseID(userID)
	if err != nil {
		return 0, err
	}
	return s.notifications.Count(ctx, &commdomain.Notification{UserID: id}, option.WithWhere("read_at IS NULL"))
}

// MarkRead is a no-op for notifications that were already read.
func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) error {
	uid, err := parseID(userID)
	if err != nil {
		return err
	}
	nid, err := parseID(notificationID)
	if err != nil {
		return err
	}

	n, err := s.notifications.FindOne(ctx, &commdomain.Notification{ID: nid, UserID: uid})
	if err != nil {
		return err
	}
	if n == nil {
		return commdomain.ErrNotFound
	}
	if n.ReadAt != nil {
		return nil
	}
	return s.notifications.Update(ctx, n.ID.String(), map[string]any{"read_at": s.clock.Now()})
}
