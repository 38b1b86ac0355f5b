package repository

import (
	"time"

	"github.com/chainsplit/chainsplit-backend/internal/models"
	"gorm.io/gorm"
)

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) Create(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

func (r *SubscriptionRepository) FindByID(id uint) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.First(&sub, id).Error; err != nil {
		return nil, notFound(err, "subscription %d", id)
	}
	return &sub, nil
}

func (r *SubscriptionRepository) ListByUser(userID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("user_id = ?", userID).
		Order("next_renewal_date ASC, id ASC").
		Find(&subs).Error
	return subs, err
}

// Update writes every column, including a cleared ChainID.
func (r *SubscriptionRepository) Update(sub *models.Subscription) error {
	return r.db.Save(sub).Error
}

func (r *SubscriptionRepository) Delete(id uint) error {
	res := r.db.Delete(&models.Subscription{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "subscription %d", id)
	}
	return nil
}

// FindDue returns active subscriptions whose renewal date is at or before now.
func (r *SubscriptionRepository) FindDue(now time.Time, limit int) ([]models.Subscription, error) {
	var subs []models.Subscription
	q := r.db.Where("status = ? AND next_renewal_date <= ?", models.SubscriptionActive, now).
		Order("next_renewal_date ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&subs).Error
	return subs, err
}
