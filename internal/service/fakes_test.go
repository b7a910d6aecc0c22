package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"tnf-api/internal/ikas"
	"tnf-api/internal/models"
	"tnf-api/internal/payment"
	"tnf-api/internal/store"

	"github.com/google/uuid"
)

// memStore is an in-memory stand-in for *store.Store that enforces the same
// natural-key uniqueness rules.
type memStore struct {
	mu sync.Mutex

	products  map[uuid.UUID]*models.Product
	orders    map[uuid.UUID]*models.Order
	pending   map[string]*models.PendingOrder
	users     map[uuid.UUID]*models.User
	ikasUsers map[uuid.UUID]*models.IkasUser
	brands    map[uuid.UUID]*models.Brand
	videos    map[uuid.UUID]*models.Video
	comments  map[uuid.UUID]*models.Comment

	favorites    map[string]bool // user|product
	follows      map[string]bool // follower|following
	brandFollows map[string]bool // user|brand
	likes        map[string]bool // user|video
	reports      map[string]bool // reporter|video
	views        map[string]int  // user|product

	failCreateOrder error
}

func newMemStore() *memStore {
	return &memStore{
		products:     map[uuid.UUID]*models.Product{},
		orders:       map[uuid.UUID]*models.Order{},
		pending:      map[string]*models.PendingOrder{},
		users:        map[uuid.UUID]*models.User{},
		ikasUsers:    map[uuid.UUID]*models.IkasUser{},
		brands:       map[uuid.UUID]*models.Brand{},
		videos:       map[uuid.UUID]*models.Video{},
		comments:     map[uuid.UUID]*models.Comment{},
		favorites:    map[string]bool{},
		follows:      map[string]bool{},
		brandFollows: map[string]bool{},
		likes:        map[string]bool{},
		reports:      map[string]bool{},
		views:        map[string]int{},
	}
}

func pair(a, b interface{}) string { return fmt.Sprintf("%v|%v", a, b) }

func (m *memStore) addProduct(p models.Product) *models.Product {
	if _, err := m.UpsertProduct(context.Background(), &p); err != nil {
		panic(err)
	}
	return m.products[p.ID]
}

func (m *memStore) addUser(username string) *models.User {
	u := &models.User{Username: username, Email: username + "@example.com"}
	if err := m.CreateUser(context.Background(), u); err != nil {
		panic(err)
	}
	return u
}

func (m *memStore) productsSorted() []models.Product {
	out := make([]models.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IkasProductID < out[j].IkasProductID })
	return out
}

func (m *memStore) UpsertProduct(_ context.Context, p *models.Product) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.products {
		if existing.IkasProductID == p.IkasProductID {
			p.ID = existing.ID
			p.CreatedAt = existing.CreatedAt
			cp := *p
			m.products[p.ID] = &cp
			return false, nil
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	cp := *p
	m.products[p.ID] = &cp
	return true, nil
}

func (m *memStore) GetProductByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.products[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (m *memStore) GetProductByIkasID(_ context.Context, ikasID string) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.IkasProductID == ikasID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) ListProducts(_ context.Context, limit, offset int) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.productsSorted()
	if offset >= len(all) {
		return []models.Product{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *memStore) RandomProducts(ctx context.Context, limit int) ([]models.Product, error) {
	return m.ListProducts(ctx, limit, 0)
}

func (m *memStore) SearchProducts(_ context.Context, q string, limit int) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Product{}
	for _, p := range m.productsSorted() {
		if contains(p.Name, q) || contains(p.Description, q) {
			out = append(out, p)
		}
	}
	return truncate(out, limit), nil
}

func (m *memStore) FavoritedProductIDs(_ context.Context, userID uuid.UUID, ids []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]bool{}
	for _, id := range ids {
		if m.favorites[pair(userID, id)] {
			out[id] = true
		}
	}
	return out, nil
}

func (m *memStore) ListFavoriteProducts(_ context.Context, userID uuid.UUID) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Product{}
	for _, p := range m.productsSorted() {
		if m.favorites[pair(userID, p.ID.String())] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) RecordProductView(_ context.Context, userID, productID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views[pair(userID, productID)]++
	return nil
}

func (m *memStore) RecentlyViewedProducts(_ context.Context, userID uuid.UUID, limit int) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Product{}
	for _, p := range m.productsSorted() {
		if m.views[pair(userID, p.ID)] > 0 {
			out = append(out, p)
		}
	}
	return truncate(out, limit), nil
}

func (m *memStore) UpsertOrderByIkasID(_ context.Context, o *models.Order) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.orders {
		if existing.IkasOrderID != nil && *existing.IkasOrderID == *o.IkasOrderID {
			o.ID = existing.ID
			if existing.Status == models.OrderStatusRefunded {
				o.Status = existing.Status
			}
			if o.UserID == nil {
				o.UserID = existing.UserID
			}
			cp := *o
			m.orders[o.ID] = &cp
			return false, nil
		}
	}
	o.ID = uuid.New()
	cp := *o
	m.orders[o.ID] = &cp
	return true, nil
}

func (m *memStore) FindUserByIkasCustomerID(_ context.Context, customerID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, iu := range m.ikasUsers {
		if iu.IkasCustomerID != customerID {
			continue
		}
		for _, u := range m.users {
			if u.IkasUserID != nil && *u.IkasUserID == iu.ID {
				cp := *u
				return &cp, nil
			}
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) CreatePendingOrder(_ context.Context, p *models.PendingOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pending[p.InvoiceID]; ok {
		return fmt.Errorf("%w: pending_orders_invoice_id_key", store.ErrDuplicate)
	}
	p.ID = uuid.New()
	cp := *p
	m.pending[p.InvoiceID] = &cp
	return nil
}

func (m *memStore) ClaimPendingOrder(_ context.Context, invoiceID string) (*models.PendingOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[invoiceID]
	if !ok || p.Status != models.PendingStatusPending {
		return nil, store.ErrNotFound
	}
	p.Status = models.PendingStatusProcessing
	cp := *p
	return &cp, nil
}

func (m *memStore) CompletePendingOrder(_ context.Context, invoiceID string) error {
	return m.movePending(invoiceID, models.PendingStatusProcessing, models.PendingStatusCompleted, "")
}

func (m *memStore) ReleasePendingOrder(_ context.Context, invoiceID string) error {
	return m.movePending(invoiceID, models.PendingStatusProcessing, models.PendingStatusPending, "")
}

func (m *memStore) FailPendingOrder(_ context.Context, invoiceID, reason string) error {
	return m.movePending(invoiceID, models.PendingStatusPending, models.PendingStatusFailed, reason)
}

func (m *memStore) FailClaimedPendingOrder(_ context.Context, invoiceID, reason string) error {
	return m.movePending(invoiceID, models.PendingStatusProcessing, models.PendingStatusFailed, reason)
}

func (m *memStore) movePending(invoiceID, from, to, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[invoiceID]
	if !ok || p.Status != from {
		return store.ErrNotFound
	}
	p.Status = to
	if reason != "" {
		p.FailureReason = reason
	}
	return nil
}

func (m *memStore) setPendingStatus(invoiceID, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[invoiceID].Status = status
}

func (m *memStore) pendingStatus(invoiceID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pending[invoiceID]; ok {
		return p.Status
	}
	return ""
}

func (m *memStore) CreateOrder(_ context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateOrder != nil {
		return m.failCreateOrder
	}
	for _, existing := range m.orders {
		if existing.InvoiceID != nil && o.InvoiceID != nil && *existing.InvoiceID == *o.InvoiceID {
			return fmt.Errorf("%w: orders_invoice_id_key", store.ErrDuplicate)
		}
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	o.CreatedAt = time.Now()
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *memStore) GetOrderByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (m *memStore) GetOrderByIkasID(_ context.Context, ikasOrderID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.IkasOrderID != nil && *o.IkasOrderID == ikasOrderID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) ListOrdersByUser(_ context.Context, userID uuid.UUID) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Order{}
	for _, o := range m.orders {
		if o.UserID != nil && *o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memStore) AttachIkasOrder(_ context.Context, id uuid.UUID, ikasOrderID, orderNumber, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return store.ErrNotFound
	}
	for otherID, other := range m.orders {
		if otherID == id || other.IkasOrderID == nil || *other.IkasOrderID != ikasOrderID {
			continue
		}
		if other.InvoiceID != nil {
			return fmt.Errorf("%w: orders_ikas_order_id_key", store.ErrDuplicate)
		}
		delete(m.orders, otherID)
	}
	o.IkasOrderID = &ikasOrderID
	o.OrderNumber = orderNumber
	o.Status = status
	return nil
}

func (m *memStore) MarkOrderRefunded(_ context.Context, id uuid.UUID, info models.RefundInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return store.ErrNotFound
	}
	o.Status = models.OrderStatusRefunded
	o.RefundInfo = &info
	return nil
}

func (m *memStore) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return fmt.Errorf("%w: users_email_key", store.ErrDuplicate)
		}
		if existing.Username == u.Username {
			return fmt.Errorf("%w: users_username_key", store.ErrDuplicate)
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) UsernameExists(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) LinkIkasUser(_ context.Context, userID, ikasUserID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.IkasUserID = &ikasUserID
	return nil
}

func (m *memStore) UpsertIkasUser(_ context.Context, iu *models.IkasUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.ikasUsers {
		if existing.IkasCustomerID == iu.IkasCustomerID {
			iu.ID = existing.ID
			if iu.AccessToken == "" {
				iu.AccessToken = existing.AccessToken
			}
			cp := *iu
			m.ikasUsers[iu.ID] = &cp
			return nil
		}
	}
	if iu.ID == uuid.Nil {
		iu.ID = uuid.New()
	}
	cp := *iu
	m.ikasUsers[iu.ID] = &cp
	return nil
}

func (m *memStore) GetIkasUserByID(_ context.Context, id uuid.UUID) (*models.IkasUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if iu, ok := m.ikasUsers[id]; ok {
		cp := *iu
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (m *memStore) ikasUserByCustomer(customerID string) *models.IkasUser {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, iu := range m.ikasUsers {
		if iu.IkasCustomerID == customerID {
			cp := *iu
			return &cp
		}
	}
	return nil
}

func (m *memStore) GetUserProfile(_ context.Context, id uuid.UUID, viewer *uuid.UUID) (*models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profileLocked(id, viewer)
}

func (m *memStore) profileLocked(id uuid.UUID, viewer *uuid.UUID) (*models.UserProfile, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	p := &models.UserProfile{User: *u}
	for key := range m.follows {
		parts := strings.Split(key, "|")
		if parts[0] == id.String() {
			p.FollowingCount++
		}
		if parts[1] == id.String() {
			p.FollowerCount++
		}
	}
	if viewer != nil {
		p.IsFollowing = m.follows[pair(*viewer, id)]
	}
	return p, nil
}

func (m *memStore) ListFollowers(_ context.Context, userID uuid.UUID, viewer *uuid.UUID) ([]models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.UserProfile{}
	for id := range m.users {
		if m.follows[pair(id, userID)] {
			p, _ := m.profileLocked(id, viewer)
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memStore) ListFollowings(_ context.Context, userID uuid.UUID, viewer *uuid.UUID) ([]models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.UserProfile{}
	for id := range m.users {
		if m.follows[pair(userID, id)] {
			p, _ := m.profileLocked(id, viewer)
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memStore) SearchUsers(_ context.Context, q string, limit int) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.User{}
	for _, u := range m.users {
		if contains(u.Username, q) || contains(u.Bio, q) {
			out = append(out, *u)
		}
	}
	return truncate(out, limit), nil
}

func (m *memStore) AddFavorite(_ context.Context, userID uuid.UUID, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertEdge(m.favorites, pair(userID, productID))
}

func (m *memStore) RemoveFavorite(_ context.Context, userID uuid.UUID, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteEdge(m.favorites, pair(userID, productID))
}

func (m *memStore) FollowUser(_ context.Context, followerID, followingID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[followingID]; !ok {
		return store.ErrNotFound
	}
	return m.insertEdge(m.follows, pair(followerID, followingID))
}

func (m *memStore) UnfollowUser(_ context.Context, followerID, followingID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteEdge(m.follows, pair(followerID, followingID))
}

func (m *memStore) UpsertBrand(_ context.Context, b *models.Brand) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.brands {
		if existing.IkasID == b.IkasID {
			b.ID = existing.ID
			cp := *b
			m.brands[b.ID] = &cp
			return nil
		}
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	cp := *b
	m.brands[b.ID] = &cp
	return nil
}

func (m *memStore) GetBrandByIkasID(_ context.Context, ikasID string) (*models.Brand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.brands {
		if b.IkasID == ikasID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) SearchBrands(_ context.Context, q string, limit int) ([]models.Brand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Brand{}
	for _, b := range m.brands {
		if contains(b.Name, q) {
			out = append(out, *b)
		}
	}
	return truncate(out, limit), nil
}

func (m *memStore) FollowBrand(_ context.Context, userID, brandID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertEdge(m.brandFollows, pair(userID, brandID))
}

func (m *memStore) UnfollowBrand(_ context.Context, userID, brandID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteEdge(m.brandFollows, pair(userID, brandID))
}

func (m *memStore) ListFollowedBrands(_ context.Context, userID uuid.UUID) ([]models.Brand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Brand{}
	for id, b := range m.brands {
		if m.brandFollows[pair(userID, id)] {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memStore) CreateVideo(_ context.Context, v *models.Video) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[v.UserID]; !ok {
		return store.ErrNotFound
	}
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	v.CreatedAt = time.Now()
	cp := *v
	m.videos[v.ID] = &cp
	return nil
}

func (m *memStore) feedLocked(v *models.Video, viewer *uuid.UUID) models.FeedVideo {
	fv := models.FeedVideo{Video: *v}
	if u, ok := m.users[v.UserID]; ok {
		fv.Username = u.Username
	}
	for key := range m.likes {
		if strings.HasSuffix(key, "|"+v.ID.String()) {
			fv.LikeCount++
		}
	}
	for _, c := range m.comments {
		if c.VideoID == v.ID {
			fv.CommentCount++
		}
	}
	if viewer != nil {
		fv.IsLiked = m.likes[pair(*viewer, v.ID)]
	}
	return fv
}

func (m *memStore) GetFeedVideo(_ context.Context, id uuid.UUID, viewer *uuid.UUID) (*models.FeedVideo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.videos[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	fv := m.feedLocked(v, viewer)
	return &fv, nil
}

func (m *memStore) ListFeed(_ context.Context, viewer *uuid.UUID, limit, offset int) ([]models.FeedVideo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]models.FeedVideo, 0, len(m.videos))
	for _, v := range m.videos {
		all = append(all, m.feedLocked(v, viewer))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return []models.FeedVideo{}, nil
	}
	return truncate(all[offset:], limit), nil
}

func (m *memStore) ListUserVideos(_ context.Context, userID uuid.UUID, viewer *uuid.UUID) ([]models.FeedVideo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.FeedVideo{}
	for _, v := range m.videos {
		if v.UserID == userID {
			out = append(out, m.feedLocked(v, viewer))
		}
	}
	return out, nil
}

func (m *memStore) SearchVideos(_ context.Context, q string, limit int) ([]models.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Video{}
	for _, v := range m.videos {
		if contains(v.Title, q) || contains(v.Description, q) {
			out = append(out, *v)
		}
	}
	return truncate(out, limit), nil
}

func (m *memStore) IncrementVideoViews(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.videos[id]
	if !ok {
		return store.ErrNotFound
	}
	v.ViewCount++
	return nil
}

func (m *memStore) DeleteVideo(_ context.Context, id, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.videos[id]
	if !ok || v.UserID != userID {
		return store.ErrNotFound
	}
	delete(m.videos, id)
	return nil
}

func (m *memStore) LikeVideo(_ context.Context, userID, videoID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.videos[videoID]; !ok {
		return store.ErrNotFound
	}
	return m.insertEdge(m.likes, pair(userID, videoID))
}

func (m *memStore) UnlikeVideo(_ context.Context, userID, videoID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteEdge(m.likes, pair(userID, videoID))
}

func (m *memStore) AddComment(_ context.Context, c *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.videos[c.VideoID]; !ok {
		return store.ErrNotFound
	}
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	if u, ok := m.users[c.UserID]; ok {
		c.Username = u.Username
	}
	cp := *c
	m.comments[c.ID] = &cp
	return nil
}

func (m *memStore) ListComments(_ context.Context, videoID uuid.UUID, limit, offset int) ([]models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Comment{}
	for _, c := range m.comments {
		if c.VideoID == videoID {
			out = append(out, *c)
		}
	}
	if offset >= len(out) {
		return []models.Comment{}, nil
	}
	return truncate(out[offset:], limit), nil
}

func (m *memStore) DeleteComment(_ context.Context, id, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok || c.UserID != userID {
		return store.ErrNotFound
	}
	delete(m.comments, id)
	return nil
}

func (m *memStore) CreateReport(_ context.Context, r *models.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.videos[r.VideoID]; !ok {
		return store.ErrNotFound
	}
	return m.insertEdge(m.reports, pair(r.ReporterID, r.VideoID))
}

func (m *memStore) insertEdge(edges map[string]bool, key string) error {
	if edges[key] {
		return store.ErrDuplicate
	}
	edges[key] = true
	return nil
}

func (m *memStore) deleteEdge(edges map[string]bool, key string) error {
	if !edges[key] {
		return store.ErrNotFound
	}
	delete(edges, key)
	return nil
}

func contains(s, q string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(q))
}

func truncate[T any](s []T, n int) []T {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}

// fakeCommerce is a scripted CommerceGateway.
type fakeCommerce struct {
	mu sync.Mutex

	productPages [][]ikas.Product
	orderPages   [][]ikas.Order
	variantTypes map[string]*ikas.VariantType
	brands       []ikas.Brand
	categories   []ikas.Category
	webhooks     []ikas.Webhook

	createOrderErr error
	refundErr      error
	saveErr        error
	loginErr       error
	customer       *ikas.Customer
	loginToken     string

	variantTypeCalls int
	createdOrders    []ikas.CreateOrderInput
	refunds          []ikas.RefundInput
	deletedScopes    []string
}

func newFakeCommerce() *fakeCommerce {
	return &fakeCommerce{variantTypes: map[string]*ikas.VariantType{}}
}

func (f *fakeCommerce) ListProducts(_ context.Context, page, limit int) (*ikas.ProductPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if page > len(f.productPages) {
		return &ikas.ProductPage{Page: ikas.Page{Page: page, Limit: limit}}, nil
	}
	return &ikas.ProductPage{
		Page: ikas.Page{Page: page, Limit: limit, HasNext: page < len(f.productPages)},
		Data: f.productPages[page-1],
	}, nil
}

func (f *fakeCommerce) ListOrders(_ context.Context, page, limit int) (*ikas.OrderPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if page > len(f.orderPages) {
		return &ikas.OrderPage{Page: ikas.Page{Page: page, Limit: limit}}, nil
	}
	return &ikas.OrderPage{
		Page: ikas.Page{Page: page, Limit: limit, HasNext: page < len(f.orderPages)},
		Data: f.orderPages[page-1],
	}, nil
}

func (f *fakeCommerce) GetVariantType(_ context.Context, id string) (*ikas.VariantType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.variantTypeCalls++
	vt, ok := f.variantTypes[id]
	if !ok {
		return nil, fmt.Errorf("%w: variant type %s not found", ikas.ErrUpstream, id)
	}
	return vt, nil
}

func (f *fakeCommerce) ListBrands(context.Context) ([]ikas.Brand, error) {
	return f.brands, nil
}

func (f *fakeCommerce) ListCategories(context.Context) ([]ikas.Category, error) {
	return f.categories, nil
}

func (f *fakeCommerce) CreateOrder(_ context.Context, input ikas.CreateOrderInput) (*ikas.CreatedOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createOrderErr != nil {
		return nil, f.createOrderErr
	}
	f.createdOrders = append(f.createdOrders, input)
	n := len(f.createdOrders)
	return &ikas.CreatedOrder{ID: fmt.Sprintf("ikas-order-%d", n), OrderNumber: fmt.Sprintf("%04d", n)}, nil
}

func (f *fakeCommerce) RefundOrder(_ context.Context, input ikas.RefundInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refundErr != nil {
		return f.refundErr
	}
	f.refunds = append(f.refunds, input)
	return nil
}

func (f *fakeCommerce) SaveCustomer(_ context.Context, input ikas.CustomerInput) (*ikas.Customer, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	return &ikas.Customer{ID: "cust-" + input.Email, Email: input.Email, FirstName: input.FirstName, LastName: input.LastName}, nil
}

func (f *fakeCommerce) CustomerLogin(_ context.Context, email, password string) (*ikas.CustomerLoginResult, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &ikas.CustomerLoginResult{Token: f.loginToken, TokenExpiry: time.Now().Add(time.Hour).UnixMilli(), Customer: f.customer}, nil
}

func (f *fakeCommerce) Me(context.Context, string) (*ikas.Customer, error) {
	return f.customer, nil
}

func (f *fakeCommerce) ListWebhooks(context.Context) ([]ikas.Webhook, error) {
	return f.webhooks, nil
}

func (f *fakeCommerce) DeleteWebhooks(_ context.Context, scopes []string) error {
	f.deletedScopes = append(f.deletedScopes, scopes...)
	return nil
}

// fakePayments is a scripted PaymentGateway.
type fakePayments struct {
	verifyErr    error
	signedTotal  string
	refundResult *payment.RefundResult
	refundErr    error

	forms   []payment.FormRequest
	refunds []payment.RefundRequest
}

func (f *fakePayments) ThreeDForm(req payment.FormRequest) (string, error) {
	f.forms = append(f.forms, req)
	return "<form>" + req.InvoiceID + "</form>", nil
}

func (f *fakePayments) VerifyCallback(r payment.CallbackResult) (*payment.CallbackHash, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	total := r.Amount
	if f.signedTotal != "" {
		total = f.signedTotal
	}
	return &payment.CallbackHash{InvoiceID: r.InvoiceID, Total: total}, nil
}

func (f *fakePayments) Refund(_ context.Context, req payment.RefundRequest) (*payment.RefundResult, error) {
	f.refunds = append(f.refunds, req)
	if f.refundErr != nil {
		return nil, f.refundErr
	}
	if f.refundResult != nil {
		return f.refundResult, nil
	}
	return &payment.RefundResult{StatusCode: payment.StatusSuccess, OrderNo: "SO-1", InvoiceID: req.InvoiceID, RefNo: "REF-1"}, nil
}

// recordingPublisher keeps every event it is handed.
type recordingPublisher struct {
	mu     sync.Mutex
	events []interface{}
	err    error
}

func (p *recordingPublisher) record(e interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) PublishOrderCompleted(_ context.Context, e *models.OrderCompletedEvent) error {
	return p.record(e)
}

func (p *recordingPublisher) PublishOrderMirrorFailed(_ context.Context, e *models.OrderMirrorFailedEvent) error {
	return p.record(e)
}

func (p *recordingPublisher) PublishOrderRefunded(_ context.Context, e *models.OrderRefundedEvent) error {
	return p.record(e)
}

func (p *recordingPublisher) PublishPaymentFailed(_ context.Context, e *models.PaymentFailedEvent) error {
	return p.record(e)
}

func (p *recordingPublisher) PublishCatalogSynced(_ context.Context, e *models.CatalogSyncedEvent) error {
	return p.record(e)
}

func (p *recordingPublisher) PublishCustomerWebhook(_ context.Context, e *models.CustomerWebhookEvent) error {
	return p.record(e)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		switch ev := e.(type) {
		case *models.OrderCompletedEvent:
			out = append(out, ev.EventType)
		case *models.OrderMirrorFailedEvent:
			out = append(out, ev.EventType)
		case *models.OrderRefundedEvent:
			out = append(out, ev.EventType)
		case *models.PaymentFailedEvent:
			out = append(out, ev.EventType)
		case *models.CatalogSyncedEvent:
			out = append(out, ev.EventType)
		case *models.CustomerWebhookEvent:
			out = append(out, ev.EventType)
		}
	}
	return out
}

// mapCache is an in-process VariantTypeCache.
type mapCache struct {
	mu sync.Mutex
	m  map[string]*ikas.VariantType
}

func (c *mapCache) Get(_ context.Context, id string) (*ikas.VariantType, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	vt, ok := c.m[id]
	return vt, ok
}

func (c *mapCache) Set(_ context.Context, vt *ikas.VariantType) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = map[string]*ikas.VariantType{}
	}
	c.m[vt.ID] = vt
	return nil
}

// onceDedup claims each key once.
type onceDedup struct {
	seen map[string]bool
}

func (d *onceDedup) SetIdempotencyKey(_ context.Context, key string, _ interface{}, _ time.Duration) (bool, error) {
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	if d.seen[key] {
		return false, nil
	}
	d.seen[key] = true
	return true, nil
}

func (d *onceDedup) ReleaseIdempotencyKey(_ context.Context, key string) error {
	delete(d.seen, key)
	return nil
}
