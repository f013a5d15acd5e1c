package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/ibuddy-app/ibuddy-service/internal/authz"
	"github.com/ibuddy-app/ibuddy-service/internal/email"
	"github.com/ibuddy-app/ibuddy-service/internal/models"
	"github.com/ibuddy-app/ibuddy-service/internal/repositories"
	"github.com/ibuddy-app/ibuddy-service/internal/storage"
	"github.com/ibuddy-app/ibuddy-service/internal/validator"
)

// MaxFileSize bounds uploaded files.
const MaxFileSize = 10 << 20

const (
	msgNameTaken     = "Name is already taken"
	msgEmptyTemplate = "Body must contain text"
	sniffLen         = 3072
)

// fileTypes maps accepted MIME types to the asset type they are stored as.
var fileTypes = map[string]models.AssetType{
	"image/png":       models.AssetTypeImage,
	"image/jpeg":      models.AssetTypeImage,
	"image/gif":       models.AssetTypeImage,
	"application/pdf": models.AssetTypeDocument,
}

type assetService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	files     *storage.Registry
	urlTTL    time.Duration
	now       func() time.Time
}

func NewAssetService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, files *storage.Registry, urlTTL time.Duration) AssetService {
	if urlTTL <= 0 {
		urlTTL = storage.DefaultURLExpiry
	}
	return &assetService{
		repo:      repo,
		logger:    logger,
		validator: validator,
		files:     files,
		urlTTL:    urlTTL,
		now:       time.Now,
	}
}

// List returns every asset for admins and the owned or shared ones for
// everyone else.
func (s *assetService) List(ctx context.Context, actor *models.User, assetType *models.AssetType) ([]*models.Asset, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if assetType != nil && !assetType.IsValid() {
		return nil, validator.Field("type", "Type is not a valid asset type", *assetType)
	}
	var (
		assets []*models.Asset
		err    error
	)
	if actor.Role == models.RoleAdmin {
		assets, err = s.repo.Asset().ListAll(ctx, assetType)
	} else {
		assets, err = s.repo.Asset().ListAccessible(ctx, actor.ID, assetType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	return assets, nil
}

func (s *assetService) Get(ctx context.Context, actor *models.User, id string) (*models.Asset, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	asset, err := s.repo.Asset().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	if asset == nil {
		return nil, ErrAssetNotFound
	}
	if !authz.CanViewAsset(actor, asset) {
		return nil, NewPermissionError(actor.ID, id, "asset", "read", "asset is not shared with you")
	}
	return asset, nil
}

func (s *assetService) IsNameAvailable(ctx context.Context, name string) (bool, error) {
	if strings.TrimSpace(name) == "" {
		return false, nil
	}
	unique, err := s.repo.Asset().IsNameUnique(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to check asset name: %w", err)
	}
	return unique, nil
}

func (s *assetService) checkName(ctx context.Context, name string) error {
	available, err := s.IsNameAvailable(ctx, name)
	if err != nil {
		return err
	}
	if !available {
		return fmt.Errorf("%w: %w", ErrAssetNameTaken, validator.Field("name", msgNameTaken, name))
	}
	return nil
}

// UploadFile stores body and records it as an image or document asset. The
// type is taken from the content, not the client supplied header.
func (s *assetService) UploadFile(ctx context.Context, actor *models.User, req *UploadFileRequest, body io.Reader) (*models.Asset, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if req.Size > MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, req.Size)
	}
	if err := s.checkName(ctx, req.Name); err != nil {
		return nil, err
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]
	mime := mimetype.Detect(head).String()
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	assetType, ok := fileTypes[mime]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, mime)
	}

	// One byte past the limit tells an oversize stream from an exact fit.
	limited := &io.LimitedReader{R: io.MultiReader(bytes.NewReader(head), body), N: MaxFileSize + 1}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(limited); err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if buf.Len() > MaxFileSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, MaxFileSize)
	}

	store := s.files.Upload()
	key := storage.NewObjectKey(s.now(), req.FileName)
	if err := store.Put(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), mime); err != nil {
		return nil, externalError("store file", err)
	}

	asset, err := s.repo.Asset().Create(ctx, &models.Asset{
		OwnerID:     actor.ID,
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		Type:        assetType,
		Host:        store.Host(),
		Src:         key,
		MimeType:    mime,
		SharedUsers: req.SharedUsers,
	})
	if err != nil {
		if derr := store.Delete(ctx, key); derr != nil {
			s.logger.Error("Failed to remove orphaned upload", "key", key, "error", derr)
		}
		return nil, fmt.Errorf("failed to create asset: %w", err)
	}
	s.logger.Info("File uploaded", "asset_id", asset.ID, "owner_id", actor.ID, "type", assetType, "size", buf.Len())
	return asset, nil
}

func sanitizeTemplate(body string) (string, error) {
	clean := email.Sanitize(body)
	if email.IsEmptyHTML(clean) {
		return "", validator.Field("body", msgEmptyTemplate, nil)
	}
	return clean, nil
}

func (s *assetService) CreateTemplate(ctx context.Context, actor *models.User, req *CreateTemplateRequest) (*models.Asset, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	body, err := sanitizeTemplate(req.Body)
	if err != nil {
		return nil, err
	}
	if err := email.CheckVariables(email.ExtractVariables(body)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidVariables, validator.Field("body", "Invalid variables in body", err.Error()))
	}
	if err := s.checkName(ctx, req.Name); err != nil {
		return nil, err
	}

	asset, err := s.repo.Asset().Create(ctx, &models.Asset{
		OwnerID:     actor.ID,
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		Type:        models.AssetTypeEmailTemplate,
		Src:         body,
		MimeType:    "text/html",
		SharedUsers: req.SharedUsers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}
	s.logger.Info("Template created", "asset_id", asset.ID, "owner_id", actor.ID)
	return asset, nil
}

func (s *assetService) Update(ctx context.Context, actor *models.User, id string, req *UpdateAssetRequest) (*models.Asset, error) {
	asset, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanMutateAsset(actor, asset) {
		return nil, NewPermissionError(actor.ID, id, "asset", "update", "only the owner can change an asset")
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	patch := repositories.AssetPatch{
		Name:        trimmed(req.Name),
		Description: trimmed(req.Description),
		SharedUsers: req.SharedUsers,
	}
	if req.Name != nil && models.SearchableName(*req.Name) != asset.SearchableName {
		if err := s.checkName(ctx, *req.Name); err != nil {
			return nil, err
		}
	}
	if req.Body != nil {
		if asset.Type != models.AssetTypeEmailTemplate {
			return nil, validator.Field("body", "Only e-mail templates have a body", nil)
		}
		body, err := sanitizeTemplate(*req.Body)
		if err != nil {
			return nil, err
		}
		if err := email.CheckVariables(email.ExtractVariables(body)); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidVariables, validator.Field("body", "Invalid variables in body", err.Error()))
		}
		patch.Src = &body
	}

	updated, err := s.repo.Asset().Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrAssetNotFound
		}
		return nil, fmt.Errorf("failed to update asset: %w", err)
	}
	return updated, nil
}

// Delete removes the record. The repository cleans up the stored file and
// only logs when that fails.
func (s *assetService) Delete(ctx context.Context, actor *models.User, id string) error {
	asset, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if !authz.CanMutateAsset(actor, asset) {
		return NewPermissionError(actor.ID, id, "asset", "delete", "only the owner can delete an asset")
	}
	if err := s.repo.Asset().Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrAssetNotFound
		}
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	s.logger.Info("Asset deleted", "asset_id", id, "actor_id", actor.ID)
	return nil
}

// Download prefers a signed URL and falls back to streaming the object.
func (s *assetService) Download(ctx context.Context, actor *models.User, id string) (*Download, error) {
	asset, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !asset.Type.IsFile() {
		return nil, ErrAssetNotFile
	}
	store, err := s.files.Get(asset.Host)
	if err != nil {
		return nil, externalError("resolve storage", err)
	}

	d := &Download{ContentType: asset.MimeType, FileName: asset.Src}
	url, err := store.SignedURL(ctx, asset.Src, s.urlTTL)
	if err != nil {
		return nil, externalError("sign download url", err)
	}
	if url != "" {
		d.URL = url
		return d, nil
	}

	body, err := store.Open(ctx, asset.Src)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrAssetNotFound
		}
		return nil, externalError("open file", err)
	}
	d.Body = body
	return d, nil
}
