package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	commdomain "github.com/glitchidea/glichflow/internal/communication/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const messageColumns = `id, thread_id, sender_id, sender_name, body, source, created_at, updated_at`

type repo struct{}

func Provide() commdomain.Repository {
	return &repo{}
}

func (r *repo) InsertThread(ctx context.Context, db *gorm.DB, thread *commdomain.Thread) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO threads (id, task_id, title, is_direct, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		thread.ID,
		thread.TaskID,
		thread.Title,
		thread.IsDirect,
		thread.CreatedAt,
		thread.UpdatedAt,
	).Error
}

func (r *repo) FindThreadByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*commdomain.Thread, error) {
	var thread commdomain.Thread
	err := db.WithContext(ctx).Raw(
		`SELECT id, task_id, title, is_direct, created_at, updated_at FROM threads WHERE id = ?`,
		id,
	).Scan(&thread).Error
	if err != nil {
		return nil, err
	}
	if thread.ID == 0 {
		return nil, nil
	}
	return &thread, nil
}

func (r *repo) FindThreadByTask(ctx context.Context, db *gorm.DB, taskID snowflake.ID) (*commdomain.Thread, error) {
	var thread commdomain.Thread
	err := db.WithContext(ctx).Raw(
		`SELECT id, task_id, title, is_direct, created_at, updated_at FROM threads WHERE task_id = ?`,
		taskID,
	).Scan(&thread).Error
	if err != nil {
		return nil, err
	}
	if thread.ID == 0 {
		return nil, nil
	}
	return &thread, nil
}

func (r *repo) DeleteThread(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM threads WHERE id = ?`, id).Error
}

func (r *repo) InsertMessage(ctx context.Context, db *gorm.DB, msg *commdomain.Message) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID,
		msg.ThreadID,
		msg.SenderID,
		msg.SenderName,
		msg.Body,
		msg.Source,
		msg.CreatedAt,
		msg.UpdatedAt,
	).Error
}

func (r *repo) UpdateMessageBody(ctx context.Context, db *gorm.DB, msg *commdomain.Message) error {
	return db.WithContext(ctx).Exec(
		`UPDATE messages SET body = ?, updated_at = ? WHERE id = ?`,
		msg.Body,
		msg.UpdatedAt,
		msg.ID,
	).Error
}

func (r *repo) FindMessageByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*commdomain.Message, error) {
	var msg commdomain.Message
	err := db.WithContext(ctx).Raw(
		`SELECT `+messageColumns+` FROM messages WHERE id = ?`,
		id,
	).Scan(&msg).Error
	if err != nil {
		return nil, err
	}
	if msg.ID == 0 {
		return nil, nil
	}
	return &msg, nil
}

func (r *repo) ListMessagesAfter(ctx context.Context, db *gorm.DB, threadID, afterID snowflake.ID, limit int) ([]commdomain.Message, error) {
	var msgs []commdomain.Message
	err := db.WithContext(ctx).Raw(
		`SELECT `+messageColumns+` FROM messages
		 WHERE thread_id = ? AND id > ?
		 ORDER BY id ASC
		 LIMIT ?`,
		threadID,
		afterID,
		limit,
	).Scan(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *repo) MoveMessages(ctx context.Context, db *gorm.DB, fromThread, toThread snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE messages SET thread_id = ? WHERE thread_id = ?`,
		toThread,
		fromThread,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) InsertDirectMessage(ctx context.Context, db *gorm.DB, dm *commdomain.DirectMessage) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO direct_messages (id, user1_id, user2_id, thread_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		dm.ID,
		dm.User1ID,
		dm.User2ID,
		dm.ThreadID,
		dm.CreatedAt,
	).Error
}

func (r *repo) FindDirectMessage(ctx context.Context, db *gorm.DB, user1, user2 snowflake.ID) (*commdomain.DirectMessage, error) {
	var dm commdomain.DirectMessage
	err := db.WithContext(ctx).Raw(
		`SELECT id, user1_id, user2_id, thread_id, created_at FROM direct_messages
		 WHERE user1_id = ? AND user2_id = ?`,
		user1,
		user2,
	).Scan(&dm).Error
	if err != nil {
		return nil, err
	}
	if dm.ID == 0 {
		return nil, nil
	}
	return &dm, nil
}

func (r *repo) FindDirectMessageByThread(ctx context.Context, db *gorm.DB, threadID snowflake.ID) (*commdomain.DirectMessage, error) {
	var dm commdomain.DirectMessage
	err := db.WithContext(ctx).Raw(
		`SELECT id, user1_id, user2_id, thread_id, created_at FROM direct_messages WHERE thread_id = ?`,
		threadID,
	).Scan(&dm).Error
	if err != nil {
		return nil, err
	}
	if dm.ID == 0 {
		return nil, nil
	}
	return &dm, nil
}

func (r *repo) ListDirectMessages(ctx context.Context, db *gorm.DB) ([]commdomain.DirectMessage, error) {
	var dms []commdomain.DirectMessage
	err := db.WithContext(ctx).Raw(
		`SELECT id, user1_id, user2_id, thread_id, created_at FROM direct_messages ORDER BY created_at ASC, id ASC`,
	).Scan(&dms).Error
	if err != nil {
		return nil, err
	}
	return dms, nil
}

func (r *repo) UpdateDirectMessagePair(ctx context.Context, db *gorm.DB, id, user1, user2 snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE direct_messages SET user1_id = ?, user2_id = ? WHERE id = ?`,
		user1,
		user2,
		id,
	).Error
}

func (r *repo) DeleteDirectMessage(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM direct_messages WHERE id = ?`, id).Error
}

func (r *repo) InsertNotification(ctx context.Context, db *gorm.DB, n *commdomain.Notification) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "kind"}, {Name: "subject_type"}, {Name: "subject_id"}},
			DoNothing: true,
		}).
		Create(n)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
