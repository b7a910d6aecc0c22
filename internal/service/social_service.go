package service

import (
	"context"
	"errors"
	"strings"

	"tnf-api/internal/models"
	"tnf-api/internal/store"
	"tnf-api/internal/util"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// SocialService owns favorites, follows, videos, likes, comments and reports.
type SocialService struct {
	store   SocialStore
	gateway CommerceGateway
	logger  *zap.Logger
}

func NewSocialService(store SocialStore, gateway CommerceGateway) *SocialService {
	return &SocialService{
		store:   store,
		gateway: gateway,
		logger:  util.Named("social"),
	}
}

// AddFavorite stores the product under its local id; productID may be the
// local id or the commerce id.
func (s *SocialService) AddFavorite(ctx context.Context, userID uuid.UUID, productID string) error {
	product, err := findProduct(ctx, s.store, productID)
	if err != nil {
		return err
	}
	if err := s.store.AddFavorite(ctx, userID, product.ID.String()); err != nil {
		return storeErr(err, "product already in favorites", "")
	}
	return nil
}

func (s *SocialService) RemoveFavorite(ctx context.Context, userID uuid.UUID, productID string) error {
	product, err := findProduct(ctx, s.store, productID)
	if err != nil {
		return err
	}
	if err := s.store.RemoveFavorite(ctx, userID, product.ID.String()); err != nil {
		return storeErr(err, "", "product not in favorites")
	}
	return nil
}

func (s *SocialService) FollowUser(ctx context.Context, followerID, followingID uuid.UUID) error {
	if followerID == followingID {
		return invalid("cannot follow yourself")
	}
	if err := s.store.FollowUser(ctx, followerID, followingID); err != nil {
		return storeErr(err, "already following", "user not found")
	}
	return nil
}

func (s *SocialService) UnfollowUser(ctx context.Context, followerID, followingID uuid.UUID) error {
	if err := s.store.UnfollowUser(ctx, followerID, followingID); err != nil {
		return storeErr(err, "", "not following")
	}
	return nil
}

// FollowBrand follows a brand by its commerce id, caching the brand
// locally from the live brand list the first time it is followed.
func (s *SocialService) FollowBrand(ctx context.Context, userID uuid.UUID, ikasBrandID string) error {
	ctx, span := util.StartSpan(ctx, "SocialService.FollowBrand")
	defer span.End()

	brand, err := s.store.GetBrandByIkasID(ctx, ikasBrandID)
	if errors.Is(err, store.ErrNotFound) {
		brand, err = s.importBrand(ctx, ikasBrandID)
	}
	if err != nil {
		return util.RecordError(span, err)
	}

	if err := s.store.FollowBrand(ctx, userID, brand.ID); err != nil {
		return util.RecordError(span, storeErr(err, "already following brand", "brand not found"))
	}
	return nil
}

func (s *SocialService) UnfollowBrand(ctx context.Context, userID uuid.UUID, ikasBrandID string) error {
	brand, err := s.store.GetBrandByIkasID(ctx, ikasBrandID)
	if err != nil {
		return storeErr(err, "", "not following brand")
	}
	if err := s.store.UnfollowBrand(ctx, userID, brand.ID); err != nil {
		return storeErr(err, "", "not following brand")
	}
	return nil
}

func (s *SocialService) FollowedBrands(ctx context.Context, userID uuid.UUID) ([]models.Brand, error) {
	return s.store.ListFollowedBrands(ctx, userID)
}

func (s *SocialService) importBrand(ctx context.Context, ikasBrandID string) (*models.Brand, error) {
	brands, err := s.gateway.ListBrands(ctx)
	if err != nil {
		return nil, upstream("failed to load brands", err)
	}
	for _, b := range brands {
		if b.ID != ikasBrandID {
			continue
		}
		brand := &models.Brand{
			IkasID:          b.ID,
			Name:            b.Name,
			ImageID:         b.ImageID,
			Description:     b.Description,
			SalesChannelIDs: pq.StringArray(b.SalesChannelIDs),
		}
		if err := s.store.UpsertBrand(ctx, brand); err != nil {
			return nil, err
		}
		s.logger.Debug("Brand cached", zap.String("ikas_id", b.ID))
		return brand, nil
	}
	return nil, notFound("brand not found")
}

type CreateVideoRequest struct {
	Title        string   `json:"title" binding:"required"`
	Description  string   `json:"description"`
	VideoURL     string   `json:"videoUrl" binding:"required,url"`
	ThumbnailURL string   `json:"thumbnailUrl"`
	ProductIDs   []string `json:"productIds"`
}

// CreateVideo records an already uploaded video. Tagged products must exist.
func (s *SocialService) CreateVideo(ctx context.Context, userID uuid.UUID, req *CreateVideoRequest) (*models.Video, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, invalid("title is required")
	}
	productIDs := make(pq.StringArray, 0, len(req.ProductIDs))
	for _, id := range req.ProductIDs {
		product, err := findProduct(ctx, s.store, id)
		if err != nil {
			return nil, err
		}
		productIDs = append(productIDs, product.ID.String())
	}

	video := &models.Video{
		UserID:       userID,
		Title:        req.Title,
		Description:  req.Description,
		VideoURL:     req.VideoURL,
		ThumbnailURL: req.ThumbnailURL,
		ProductIDs:   productIDs,
	}
	if err := s.store.CreateVideo(ctx, video); err != nil {
		return nil, storeErr(err, "video already exists", "user not found")
	}
	return video, nil
}

// GetVideo returns a video and counts the view.
func (s *SocialService) GetVideo(ctx context.Context, id uuid.UUID, viewer *uuid.UUID) (*models.FeedVideo, error) {
	if err := s.store.IncrementVideoViews(ctx, id); err != nil {
		return nil, storeErr(err, "", "video not found")
	}
	video, err := s.store.GetFeedVideo(ctx, id, viewer)
	if err != nil {
		return nil, storeErr(err, "", "video not found")
	}
	return video, nil
}

func (s *SocialService) Feed(ctx context.Context, viewer *uuid.UUID, page, limit int) ([]models.FeedVideo, error) {
	limit, offset := paging(page, limit)
	return s.store.ListFeed(ctx, viewer, limit, offset)
}

func (s *SocialService) UserVideos(ctx context.Context, userID uuid.UUID, viewer *uuid.UUID) ([]models.FeedVideo, error) {
	return s.store.ListUserVideos(ctx, userID, viewer)
}

// DeleteVideo deletes a video owned by userID.
func (s *SocialService) DeleteVideo(ctx context.Context, userID, videoID uuid.UUID) error {
	if err := s.store.DeleteVideo(ctx, videoID, userID); err != nil {
		return storeErr(err, "", "video not found")
	}
	return nil
}

func (s *SocialService) LikeVideo(ctx context.Context, userID, videoID uuid.UUID) error {
	if err := s.store.LikeVideo(ctx, userID, videoID); err != nil {
		return storeErr(err, "already liked", "video not found")
	}
	return nil
}

func (s *SocialService) UnlikeVideo(ctx context.Context, userID, videoID uuid.UUID) error {
	if err := s.store.UnlikeVideo(ctx, userID, videoID); err != nil {
		return storeErr(err, "", "not liked")
	}
	return nil
}

func (s *SocialService) AddComment(ctx context.Context, userID, videoID uuid.UUID, text string) (*models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalid("comment text is required")
	}
	comment := &models.Comment{VideoID: videoID, UserID: userID, Text: text}
	if err := s.store.AddComment(ctx, comment); err != nil {
		return nil, storeErr(err, "", "video not found")
	}
	return comment, nil
}

func (s *SocialService) Comments(ctx context.Context, videoID uuid.UUID, page, limit int) ([]models.Comment, error) {
	limit, offset := paging(page, limit)
	return s.store.ListComments(ctx, videoID, limit, offset)
}

func (s *SocialService) DeleteComment(ctx context.Context, userID, commentID uuid.UUID) error {
	if err := s.store.DeleteComment(ctx, commentID, userID); err != nil {
		return storeErr(err, "", "comment not found")
	}
	return nil
}

// ReportVideo files one report per user and video.
func (s *SocialService) ReportVideo(ctx context.Context, userID, videoID uuid.UUID, reason string) (*models.Report, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalid("reason is required")
	}
	report := &models.Report{ReporterID: userID, VideoID: videoID, Reason: reason}
	if err := s.store.CreateReport(ctx, report); err != nil {
		return nil, storeErr(err, "video already reported", "video not found")
	}
	s.logger.Info("Video reported", zap.String("video_id", videoID.String()), zap.String("reporter_id", userID.String()))
	return report, nil
}

// paging turns a 1-based page into limit/offset.
func paging(page, limit int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if page < 1 {
		page = 1
	}
	return limit, (page - 1) * limit
}
