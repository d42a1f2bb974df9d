package service

import (
	"context"
	"strings"

	saledomain "github.com/glitchidea/glichflow/internal/sale/domain"
	"github.com/glitchidea/glichflow/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UploadFile stores the object first and then records the row. A failed
// insert removes the object again.
func (s *Service) UploadFile(ctx context.Context, saleID string, req saledomain.UploadRequest) (*saledomain.FileResponse, error) {
	id, err := parseID(saleID)
	if err != nil {
		return nil, err
	}
	kind, err := parseFileKind(req.Kind)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Filename)
	if name == "" || req.Body == nil || req.Size <= 0 {
		return nil, saledomain.ErrInvalidFile
	}
	if req.Size > MaxFileSize {
		return nil, saledomain.ErrFileTooLarge
	}

	sale, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if sale == nil {
		return nil, saledomain.ErrNotFound
	}

	fileID := s.genID.Generate()
	file := &saledomain.SaleFile{
		ID:           fileID,
		SaleID:       sale.ID,
		Kind:         kind,
		OriginalName: name,
		ObjectKey:    storage.ObjectKey(sale.CustomerName, sale.ProjectName, string(kind), fileID.String(), name),
		ContentType:  strings.TrimSpace(req.ContentType),
		Size:         req.Size,
		CreatedAt:    s.clock.Now(),
	}

	if err := s.storage.Put(ctx, file.ObjectKey, req.Body, req.Size, file.ContentType); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.repo.FindByIDForUpdate(ctx, tx, sale.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return saledomain.ErrNotFound
		}
		return s.repo.InsertFile(ctx, tx, file)
	})
	if err != nil {
		s.deleteObject(ctx, file.ObjectKey)
		return nil, err
	}

	s.log.Info("sale file stored",
		zap.String("sale_id", sale.ID.String()),
		zap.String("file_id", file.ID.String()),
		zap.String("kind", string(kind)),
	)
	resp := toFileResponse(*file)
	return &resp, nil
}

func (s *Service) RemoveFile(ctx context.Context, saleID, fileID string) error {
	sid, err := parseID(saleID)
	if err != nil {
		return err
	}
	fid, err := parseID(fileID)
	if err != nil {
		return err
	}

	var key string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		file, err := s.repo.FindFile(ctx, tx, sid, fid)
		if err != nil {
			return err
		}
		if file == nil {
			return saledomain.ErrNotFound
		}
		key = file.ObjectKey
		return s.repo.DeleteFile(ctx, tx, sid, fid)
	})
	if err != nil {
		return err
	}

	s.deleteObject(ctx, key)
	return nil
}

func parseFileKind(value string) (saledomain.FileKind, error) {
	switch saledomain.FileKind(strings.ToLower(strings.TrimSpace(value))) {
	case saledomain.FileAttachment, "":
		return saledomain.FileAttachment, nil
	case saledomain.FileReceipt:
		return saledomain.FileReceipt, nil
	default:
		return "", saledomain.ErrInvalidFileKind
	}
}
