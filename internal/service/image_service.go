package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/stayvia/user-service/internal/domain"
	"github.com/stayvia/user-service/internal/media"
	"github.com/stayvia/user-service/internal/repository/ports"
)

var ErrUnsupportedImage = fmt.Errorf("only JPEG (.jpg, .jpeg), PNG (.png) and WEBP (.webp) files are allowed")

// UserImageService stores profile pictures in object storage and keeps the
// account's picture reference in sync. At most one object per account is
// kept; replaced pictures are deleted best-effort.
type UserImageService struct {
	users   ports.UserRepository
	storage ports.ObjectStorage
	uow     ports.UnitOfWork
	bucket  string
}

func NewUserImageService(users ports.UserRepository, storage ports.ObjectStorage, uow ports.UnitOfWork, bucket string) *UserImageService {
	return &UserImageService{users: users, storage: storage, uow: uow, bucket: bucket}
}

func (s *UserImageService) UploadProfilePicture(ctx context.Context, userID uuid.UUID, upload media.Upload) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(upload.FileName), "."))
	switch ext {
	case "jpg", "jpeg", "png", "webp":
	default:
		return "", ErrUnsupportedImage
	}

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return "", err
	}

	processed, err := media.ProcessAvatar(upload, media.MaxAvatarDimension)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	objectName := fmt.Sprintf("profiles/%s/avatar.%s", userID, ext)
	url, err := s.storage.Upload(ctx, s.bucket, objectName, processed.ContentType,
		bytes.NewReader(processed.Bytes), int64(len(processed.Bytes)))
	if err != nil {
		return "", err
	}

	err = s.uow.Do(ctx, func(ctx context.Context) error {
		return s.users.UpdateProfilePicture(ctx, userID, &url)
	})
	if err != nil {
		// The reference was never stored; drop the fresh object so it does
		// not sit orphaned in the bucket.
		if delErr := s.storage.Delete(ctx, s.bucket, objectName); delErr != nil {
			log.Printf("delete orphaned profile picture %s: %v", objectName, delErr)
		}
		return "", err
	}

	if user.ProfilePicture != nil && *user.ProfilePicture != url {
		s.deleteObject(ctx, *user.ProfilePicture)
	}
	return url, nil
}

func (s *UserImageService) DeleteProfilePicture(ctx context.Context, userID uuid.UUID) error {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}

	err = s.uow.Do(ctx, func(ctx context.Context) error {
		return s.users.UpdateProfilePicture(ctx, userID, nil)
	})
	if err != nil {
		return err
	}

	if user.ProfilePicture != nil {
		s.deleteObject(ctx, *user.ProfilePicture)
	}
	return nil
}

func (s *UserImageService) findUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// deleteObject strips the bucket prefix from a stored URL and removes the
// object; storage cleanup failures are logged, never surfaced.
func (s *UserImageService) deleteObject(ctx context.Context, url string) {
	idx := strings.Index(url, "/"+s.bucket+"/")
	if idx < 0 {
		return
	}
	objectName := url[idx+len(s.bucket)+2:]
	if err := s.storage.Delete(ctx, s.bucket, objectName); err != nil {
		log.Printf("delete stale profile picture %s: %v", objectName, err)
	}
}
