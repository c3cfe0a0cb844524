package models

import (
	"bytes"
	"context"
	"errors"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/mmdatafocus/project_billing/config"
	"github.com/mmdatafocus/project_billing/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MaxAttachmentBytes caps a single upload.
const MaxAttachmentBytes = 5 << 20

// Attachment is a file kept in object storage for a billing document.
type Attachment struct {
	ID           string       `gorm:"primaryKey;size:36" json:"id"`
	TenantId     string       `gorm:"size:64;not null;index" json:"tenantId"`
	DocumentKind DocumentKind `gorm:"size:32;not null;index:,composite:attachment_ref" json:"documentKind"`
	DocumentId   string       `gorm:"size:36;not null;index:,composite:attachment_ref" json:"documentId"`
	FileName     string       `gorm:"size:255;not null" json:"fileName"`
	MimeType     string       `gorm:"size:100;not null" json:"mimeType"`
	SizeBytes    int64        `gorm:"not null" json:"sizeBytes"`
	ObjectKey    string       `gorm:"size:512;not null" json:"objectKey"`
	Url          string       `gorm:"size:1024;not null" json:"url"`
	ThumbnailKey *string      `gorm:"size:512" json:"thumbnailKey"`
	ThumbnailUrl *string      `gorm:"size:1024" json:"thumbnailUrl"`
	UploadedById string       `gorm:"size:36;not null" json:"uploadedById"`
	CreatedAt    time.Time    `json:"createdAt"`
}

func (a *Attachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// createThumbnail renders a 200px wide JPEG preview.
func createThumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	thumbnail := imaging.Resize(img, 200, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumbnail, imaging.JPEG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func thumbnailObjectKey(objectKey string) string {
	ext := path.Ext(objectKey)
	return strings.TrimSuffix(objectKey, ext) + "_thumb.jpg"
}

// CreateAttachment uploads data for the document and records it. Images also get a
// thumbnail; a thumbnail failure is logged and the attachment is kept without one.
func CreateAttachment(ctx context.Context, store utils.ObjectStore, kind DocumentKind, documentId string, fileName string, data []byte) (*Attachment, error) {
	actor, err := utils.ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, utils.ErrValidation("file is empty")
	}
	if len(data) > MaxAttachmentBytes {
		return nil, utils.ErrValidation("file exceeds the %d MB limit", MaxAttachmentBytes>>20)
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" {
		return nil, utils.ErrValidation("file has no extension")
	}
	mimeType, err := utils.DetectAttachmentMimeType(fileName, data)
	if err != nil {
		return nil, err
	}

	db := config.GetDB().WithContext(ctx)
	if _, err := loadDocument(db, kind, actor.TenantId, documentId, false); err != nil {
		return nil, err
	}

	objectKey := path.Join(actor.TenantId, string(kind), documentId, uuid.NewString()+ext)
	if err := store.Put(ctx, objectKey, data, mimeType); err != nil {
		return nil, err
	}

	attachment := Attachment{
		TenantId:     actor.TenantId,
		DocumentKind: kind,
		DocumentId:   documentId,
		FileName:     filepath.Base(fileName),
		MimeType:     mimeType,
		SizeBytes:    int64(len(data)),
		ObjectKey:    objectKey,
		Url:          store.URL(objectKey),
		UploadedById: actor.UserId,
	}
	if utils.IsImageMimeType(mimeType) {
		if thumb, err := createThumbnail(data); err != nil {
			config.GetLogger().WithFields(logrus.Fields{
				"field":      "CreateAttachment",
				"object_key": objectKey,
			}).Warn("thumbnail generation failed: " + err.Error())
		} else {
			key := thumbnailObjectKey(objectKey)
			if err := store.Put(ctx, key, thumb, "image/jpeg"); err != nil {
				config.GetLogger().WithField("object_key", key).Warn("thumbnail upload failed: " + err.Error())
			} else {
				url := store.URL(key)
				attachment.ThumbnailKey = &key
				attachment.ThumbnailUrl = &url
			}
		}
	}

	if err := db.Create(&attachment).Error; err != nil {
		_ = store.Delete(ctx, objectKey)
		if attachment.ThumbnailKey != nil {
			_ = store.Delete(ctx, *attachment.ThumbnailKey)
		}
		return nil, err
	}
	return &attachment, nil
}

func ListAttachments(ctx context.Context, kind DocumentKind, documentId string) ([]*Attachment, error) {
	actor, err := utils.ActorFromContext(ctx)
	if err != nil {
		return nil, err
	}
	db := config.GetDB().WithContext(ctx)
	if _, err := loadDocument(db, kind, actor.TenantId, documentId, false); err != nil {
		return nil, err
	}
	var results []*Attachment
	err = db.Where("tenant_id = ? AND document_kind = ? AND document_id = ?", actor.TenantId, kind, documentId).
		Order("created_at").
		Find(&results).Error
	return results, err
}

// DeleteAttachment removes the record first, then the stored objects.
func DeleteAttachment(ctx context.Context, store utils.ObjectStore, id string) error {
	actor, err := utils.ActorFromContext(ctx)
	if err != nil {
		return err
	}
	db := config.GetDB().WithContext(ctx)
	var a Attachment
	if err := db.Where("tenant_id = ? AND id = ?", actor.TenantId, id).Take(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrNotFound("attachment %s not found", id)
		}
		return err
	}
	if UserRole(actor.Role) != UserRoleAdmin && a.UploadedById != actor.UserId {
		return utils.ErrForbidden("only the uploader or an admin can delete this attachment")
	}
	if err := db.Delete(&a).Error; err != nil {
		return err
	}
	if err := store.Delete(ctx, a.ObjectKey); err != nil {
		config.LogError(config.GetLogger(), "models", "DeleteAttachment", a.ObjectKey, nil, err)
	}
	if a.ThumbnailKey != nil {
		_ = store.Delete(ctx, *a.ThumbnailKey)
	}
	return nil
}
