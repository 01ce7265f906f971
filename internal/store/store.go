package store

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/alhaqil/storefront/internal/models"
)

// Preference keys. The set mirrors what the storefront keeps between visits.
const (
	PrefLastSearch       = "last_search"
	PrefSelectedCategory = "selected_category"
)

var ErrNotFound = errors.New("store: not found")

// Store is the durable session-scoped storage behind the cart engine, the
// auth manager and the checkout orchestrator. Every read goes through here,
// so the persisted copy is always the last-known-good local view.
type Store struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{DB: db}
}

func (s *Store) CartLines(sessionID string) ([]models.CartLine, error) {
	var lines []models.CartLine
	if err := s.DB.Where("session_id = ?", sessionID).Order("id ASC").Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *Store) CartLine(sessionID string, productID int) (*models.CartLine, error) {
	var line models.CartLine
	err := s.DB.Where("session_id = ? AND product_id = ?", sessionID, productID).First(&line).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (s *Store) SaveCartLine(line *models.CartLine) error {
	return s.DB.Save(line).Error
}

func (s *Store) DeleteCartLine(sessionID string, productID int) error {
	return s.DB.Where("session_id = ? AND product_id = ?", sessionID, productID).
		Delete(&models.CartLine{}).Error
}

// ReplaceCart swaps the whole cart for a session in one transaction. Used by
// the sync merge so a half-applied merge never becomes visible.
func (s *Store) ReplaceCart(sessionID string, lines []models.CartLine) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&models.CartLine{}).Error; err != nil {
			return err
		}
		for i := range lines {
			lines[i].ID = 0
			lines[i].SessionID = sessionID
			if err := tx.Create(&lines[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ClearCart(sessionID string) error {
	return s.DB.Where("session_id = ?", sessionID).Delete(&models.CartLine{}).Error
}

func (s *Store) Session(sessionID string) (*models.Session, error) {
	var sess models.Session
	err := s.DB.Where("session_id = ?", sessionID).First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) SaveSession(sess *models.Session) error {
	return s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		UpdateAll: true,
	}).Create(sess).Error
}

func (s *Store) ClearSession(sessionID string) error {
	return s.DB.Where("session_id = ?", sessionID).Delete(&models.Session{}).Error
}

func (s *Store) LastOrder(sessionID string) (*models.LastOrder, error) {
	var order models.LastOrder
	err := s.DB.Where("session_id = ?", sessionID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Store) SaveLastOrder(order *models.LastOrder) error {
	return s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		UpdateAll: true,
	}).Create(order).Error
}

func (s *Store) Coupon(sessionID string) (*models.CouponMarker, error) {
	var coupon models.CouponMarker
	err := s.DB.Where("session_id = ?", sessionID).First(&coupon).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (s *Store) SaveCoupon(coupon *models.CouponMarker) error {
	return s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		UpdateAll: true,
	}).Create(coupon).Error
}

func (s *Store) ClearCoupon(sessionID string) error {
	return s.DB.Where("session_id = ?", sessionID).Delete(&models.CouponMarker{}).Error
}

func (s *Store) SetPreference(sessionID, key, value string) error {
	return s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&models.Preference{SessionID: sessionID, Key: key, Value: value}).Error
}

func (s *Store) Preference(sessionID, key string) (string, error) {
	var pref models.Preference
	err := s.DB.Where("session_id = ? AND key = ?", sessionID, key).First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return pref.Value, nil
}
